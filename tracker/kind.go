package tracker

// Kind names a family of tracked handles.
type Kind string

const (
	KindStream      Kind = "stream"
	KindArray       Kind = "array"
	KindLargeObject Kind = "large_object"
	KindValue       Kind = "value"
	KindMetadata    Kind = "metadata"
	KindRows        Kind = "rows"
	KindIterator    Kind = "iterator"
	KindStatement   Kind = "statement"
	KindSnapshot    Kind = "snapshot"
	KindBatch       Kind = "batch"
	KindTransaction Kind = "transaction"
	KindSavepoint   Kind = "savepoint"
	KindConnection  Kind = "connection"
	KindDB          Kind = "db"
)

// closeOrder ranks kinds for the cascade. Lower ranks close first: a
// descendant that may still reference a cursor must go before the cursor, and
// a cursor before the statement that produced it.
var closeOrder = map[Kind]int{
	KindStream:      0,
	KindArray:       1,
	KindLargeObject: 1,
	KindValue:       1,
	KindMetadata:    2,
	KindRows:        3,
	KindIterator:    3,
	KindStatement:   4,
	KindSnapshot:    4,
	KindBatch:       4,
	KindTransaction: 5,
	KindSavepoint:   6,
	KindConnection:  7,
	KindDB:          7,
}

// Rank returns the cascade position of k. Unknown kinds close last.
func (k Kind) Rank() int {
	if r, ok := closeOrder[k]; ok {
		return r
	}
	return len(closeOrder)
}

func (k Kind) String() string {
	return string(k)
}
