package rows

import (
	"fmt"
)

// DataError is reported by a source when a cell cannot be converted to the
// declared column type. It is not fatal, the cell becomes null.
type DataError struct {
	Column string
	Err    error
}

func (self *DataError) Error() string {
	return fmt.Sprintf("data error in column %s: %s", self.Column, self.Err)
}

func (self *DataError) Unwrap() error {
	return self.Err
}

func NewDataError(column string, err error) *DataError {
	return &DataError{
		Column: column,
		Err:    err,
	}
}

// ErrorCounter counts the data errors of one statement. Once more than Max
// errors were seen the statement aborts, a Max of zero never aborts.
type ErrorCounter struct {
	Max   int
	count int
	last  error
}

func NewErrorCounter(max int) *ErrorCounter {
	return &ErrorCounter{
		Max: max,
	}
}

// Add records the error and returns a fatal error once the limit is exceeded
func (self *ErrorCounter) Add(err error) error {
	self.count++
	self.last = err
	if self.Max > 0 && self.count > self.Max {
		return fmt.Errorf("too many data errors (%d), last: %s", self.count, err)
	}
	return nil
}

func (self *ErrorCounter) Count() int {
	return self.count
}

func (self *ErrorCounter) Last() error {
	return self.last
}

func (self *ErrorCounter) Reset() {
	self.count = 0
	self.last = nil
}
