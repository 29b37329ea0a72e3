package batch

// ItemStatus is the indexing outcome of a single object in an update batch.
type ItemStatus string

// Batch item status values.
const (
	StatusIndexed ItemStatus = "indexed"
	StatusSkipped ItemStatus = "skipped"
)

// Result is the outcome of preparing one object during a batch update.
type Result struct {
	identifier string
	status     ItemStatus
	err        error
}

// NewIndexed creates a result for an object that was submitted to the engine.
func NewIndexed(identifier string) Result {
	return Result{identifier: identifier, status: StatusIndexed}
}

// NewSkipped creates a result for an object dropped from the batch.
func NewSkipped(identifier string, err error) Result {
	return Result{identifier: identifier, status: StatusSkipped, err: err}
}

// Identifier returns the document identifier of the object.
func (r Result) Identifier() string { return r.identifier }

// Status returns the indexing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the preparation error, if any.
func (r Result) Err() error { return r.err }

// Skipped counts the dropped objects in results.
func Skipped(results []Result) int {
	n := 0
	for _, r := range results {
		if r.status == StatusSkipped {
			n++
		}
	}
	return n
}
