package request

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// Composite groups sub-requests executed in order as one unit. A failed
// sub-request does not stop the others; the composite reports the first
// error and Failed tells which sub-requests did not succeed. Nothing is
// rolled back.
type Composite struct {
	base
	requests []Request
}

// NewComposite groups requests. Nested composites are flattened.
func NewComposite(requests ...Request) *Composite {
	c := &Composite{base: base{kind: "Composite"}}
	for _, r := range requests {
		if inner, ok := r.(*Composite); ok {
			c.requests = append(c.requests, inner.requests...)
			continue
		}
		c.requests = append(c.requests, r)
	}
	return c
}

// Requests returns the sub-requests in order.
func (c *Composite) Requests() []Request {
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Len is the number of sub-requests.
func (c *Composite) Len() int { return len(c.requests) }

// IsReadOnly reports whether every sub-request is read-only.
func (c *Composite) IsReadOnly() bool {
	for _, r := range c.requests {
		if !r.IsReadOnly() {
			return false
		}
	}
	return true
}

// Submit submits the composite and every sub-request. It fails without
// changing anything if any sub-request was already submitted.
func (c *Composite) Submit() error {
	for _, r := range c.requests {
		if r.State() != Created {
			return ErrAlreadySubmitted.New(r.Kind(), r.State())
		}
	}
	if err := c.base.Submit(); err != nil {
		return err
	}
	for _, r := range c.requests {
		_ = r.Submit() // all checked above
	}
	return nil
}

// HasError reports whether the composite or any sub-request failed.
func (c *Composite) HasError() bool { return c.Err() != nil }

// Err returns the composite's own error or else the first sub-request error.
func (c *Composite) Err() error {
	if c.err != nil {
		return c.err
	}
	for _, r := range c.requests {
		if err := r.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Finish finishes any sub-request still running, then the composite.
func (c *Composite) Finish() {
	for _, r := range c.requests {
		r.Finish()
	}
	if c.IsFrozen() {
		return
	}
	if c.Err() != nil {
		c.state.Store(int32(Failed))
		return
	}
	c.state.Store(int32(Completed))
}

// Failed returns the indexes of sub-requests that carry an error.
func (c *Composite) Failed() *roaring.Bitmap {
	bm := roaring.New()
	for i, r := range c.requests {
		if r.HasError() {
			bm.Add(uint32(i))
		}
	}
	return bm
}

// Succeeded returns the indexes of sub-requests that completed without error.
func (c *Composite) Succeeded() *roaring.Bitmap {
	bm := roaring.New()
	bm.AddRange(0, uint64(len(c.requests)))
	bm.AndNot(c.Failed())
	return bm
}

func (c *Composite) String() string {
	return fmt.Sprintf("composite of %d requests", len(c.requests))
}

// Unwrap returns the requests r stands for: the sub-requests of a
// composite, or r itself.
func Unwrap(r Request) []Request {
	if c, ok := r.(*Composite); ok {
		return c.Requests()
	}
	return []Request{r}
}
