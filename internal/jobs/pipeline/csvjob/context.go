package csvjob

import (
	"context"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/jobs/orchestrator"
	jobrt "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/jobs/step"
)

// ExecutionContext is the state the stages of one CSV job hand to each
// other. It lives in the orchestrator state, so it survives restarts.
type ExecutionContext struct {
	Headers           []csvimport.CSVHeader          `json:"headers,omitempty"`
	HeaderToPredicate map[int]csvimport.PredicateRef `json:"header_to_predicate,omitempty"`
	PredicateIDs      map[string]csvimport.ThingID   `json:"predicate_ids,omitempty"`
	ObjectIDs         map[string]csvimport.ThingID   `json:"object_ids,omitempty"`
	Steps             map[string]step.Stats          `json:"steps,omitempty"`

	commit func() error
}

// Load decodes the execution context of st. Commit writes it back through
// the job's orchestrator state.
func Load(jc *jobrt.Context, st *orchestrator.State) (*ExecutionContext, error) {
	ec := &ExecutionContext{}
	if err := st.Decode(ec); err != nil {
		return nil, err
	}
	if ec.HeaderToPredicate == nil {
		ec.HeaderToPredicate = map[int]csvimport.PredicateRef{}
	}
	if ec.PredicateIDs == nil {
		ec.PredicateIDs = map[string]csvimport.ThingID{}
	}
	if ec.ObjectIDs == nil {
		ec.ObjectIDs = map[string]csvimport.ThingID{}
	}
	if ec.Steps == nil {
		ec.Steps = map[string]step.Stats{}
	}
	ec.commit = func() error {
		if err := st.Encode(ec); err != nil {
			return err
		}
		return st.Save(jc)
	}
	return ec, nil
}

func (ec *ExecutionContext) Commit() error {
	if ec.commit == nil {
		return nil
	}
	return ec.commit()
}

func (ec *ExecutionContext) Load(name string) step.Stats { return ec.Steps[name] }

func (ec *ExecutionContext) Save(_ context.Context, name string, stats step.Stats) error {
	ec.Steps[name] = stats
	return ec.Commit()
}

// ResetStep forgets the checkpoint of a step so it runs from the start.
func (ec *ExecutionContext) ResetStep(name string) {
	delete(ec.Steps, name)
}
