package request

import (
	"fmt"
)

// Processor handles each request type. Handlers record outcomes on the
// request (SetError, SetActualLocation, results); they never return errors.
type Processor interface {
	ReadNode(r *ReadNode)
	ReadAllProperties(r *ReadAllProperties)
	ReadProperty(r *ReadProperty)
	ReadAllChildren(r *ReadAllChildren)
	ReadBlockOfChildren(r *ReadBlockOfChildren)
	ReadNextBlockOfChildren(r *ReadNextBlockOfChildren)
	ReadBranch(r *ReadBranch)
	CreateNode(r *CreateNode)
	UpdateProperties(r *UpdateProperties)
	RemoveProperties(r *RemoveProperties)
	MoveBranch(r *MoveBranch)
	CopyBranch(r *CopyBranch)
	DeleteBranch(r *DeleteBranch)
}

// Process runs r through p, driving the lifecycle: the request (and each
// sub-request of a composite) is begun, handled and finished. A composite's
// sub-requests are processed in order even when earlier ones fail.
func Process(p Processor, r Request) {
	r.Begin()
	if c, ok := r.(*Composite); ok {
		for _, sub := range c.requests {
			if sub.IsFrozen() {
				continue
			}
			sub.Begin()
			Dispatch(p, sub)
			sub.Finish()
		}
	} else {
		Dispatch(p, r)
	}
	r.Finish()
}

// Dispatch calls the handler for r's type without touching the lifecycle.
// Composites are dispatched sub-request by sub-request.
func Dispatch(p Processor, r Request) {
	switch req := r.(type) {
	case *ReadNode:
		p.ReadNode(req)
	case *ReadAllProperties:
		p.ReadAllProperties(req)
	case *ReadProperty:
		p.ReadProperty(req)
	case *ReadAllChildren:
		p.ReadAllChildren(req)
	case *ReadBlockOfChildren:
		p.ReadBlockOfChildren(req)
	case *ReadNextBlockOfChildren:
		p.ReadNextBlockOfChildren(req)
	case *ReadBranch:
		p.ReadBranch(req)
	case *CreateNode:
		p.CreateNode(req)
	case *UpdateProperties:
		p.UpdateProperties(req)
	case *RemoveProperties:
		p.RemoveProperties(req)
	case *MoveBranch:
		p.MoveBranch(req)
	case *CopyBranch:
		p.CopyBranch(req)
	case *DeleteBranch:
		p.DeleteBranch(req)
	case *Composite:
		for _, sub := range req.requests {
			Dispatch(p, sub)
		}
	default:
		panic(fmt.Sprintf("request: unhandled request type %T", r))
	}
}
