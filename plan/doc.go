package plan

// The following documentation is used to describe how a parsed statement is
// mapped into a pipeline of row iterators.
//
// Every select block and every set operation gets a query context. Contexts
// form a tree, a subquery, a derived table or a common table expression body
// is a child of the block it shows up in, and may read the row that block is
// evaluating.
//
// A select block runs the following phases, in this order, each at most once
//
// 1) From
//    Every table atom is bound as a source and opened. Comma separated atoms
//    are multiplied, joins are built with their condition.
//
// 2) Stat
//    Sources report their data errors to the statement counter.
//
// 3) Resolve
//    The projection is expanded, stars become one column per source column.
//    The aggregate calls are collected into targets and TOP, OFFSET and FETCH
//    are folded into numbers.
//
// 4) Where
//    A filter compiled against the FROM row.
//
// 5) Prefetch
//    Sources only read the columns referenced by the block.
//
// 6) Group
//    The group operator, if applicable, followed by HAVING. From here on the
//    row is the first row of a group with the aggregate values appended.
//
// 7) Project
//    The output columns, plus hidden columns for ORDER BY or DISTINCT ON
//    items that are not in the select list.
//
// 8) Pushdown
//    WHERE terms of a simple shape are handed to the sources, with a limit
//    hint when nothing reorders or drops rows.
//
// 9) Distinct, Order
//
// 10) Output target
//     The INTO table function is called and must return an output.
//
// 11) Reproject
//     Hidden columns are dropped.
//
// 12) Offset/Fetch, Into
//
// A set operation plans both sides, combines them and applies its own ORDER
// BY, OFFSET and FETCH over the combined rows.
