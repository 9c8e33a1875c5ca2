// Package tags implements the boolean query algebra over event tags.
//
// Tag is one label, Tags is an AND of labels, Where is an OR of Tags. AND
// narrows what an event's payload may be, OR widens it; both rules are
// documented contracts rather than type constraints. Queries serialize to a
// list of {tags, local} wire objects and render as strings like
//
//	'door' & 'open' & isLocal | 'alarm'
//
// where embedded single quotes are doubled. Rendering is deterministic for a
// given construction order, so rendered queries are safe to compare and
// cache.
package tags
