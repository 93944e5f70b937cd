package workflow

import (
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// ActionableItem pairs a request with whether the viewer may act on it
type ActionableItem struct {
	Request    *entity.RequestSummary `json:"request"`
	CanAct     bool                   `json:"can_act"`
	StatusText string                 `json:"status_label"`
}

// ActionableView is a dashboard projection: every listed request plus the
// count the viewer can act on.
type ActionableView struct {
	Kind  entity.RequestKind `json:"kind"`
	Items []ActionableItem   `json:"items"`
	Count int                `json:"actionable_count"`
}

// Actionable applies CanAct to each request. It never mutates anything.
func Actionable(kind entity.RequestKind, requests []*entity.RequestSummary, role domainwf.Role) *ActionableView {
	view := &ActionableView{Kind: kind, Items: make([]ActionableItem, 0, len(requests))}
	for _, r := range requests {
		ok := domainwf.CanAct(r.Status, role)
		if ok {
			view.Count++
		}
		view.Items = append(view.Items, ActionableItem{
			Request:    r,
			CanAct:     ok,
			StatusText: r.Status.Label(),
		})
	}
	return view
}

// OnlyActionable returns the subset of the view the viewer may act on
func (v *ActionableView) OnlyActionable() []*entity.RequestSummary {
	out := make([]*entity.RequestSummary, 0, v.Count)
	for _, it := range v.Items {
		if it.CanAct {
			out = append(out, it.Request)
		}
	}
	return out
}
