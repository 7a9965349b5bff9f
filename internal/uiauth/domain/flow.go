package domain

// Flow is an ordered list of stages that together authenticate a request.
type Flow struct {
	Stages []StageType `json:"stages"`
}

// NewFlow is shorthand for building a Flow from stages.
func NewFlow(stages ...StageType) Flow {
	return Flow{Stages: stages}
}

// SatisfiedBy reports whether every stage of the flow has a recorded result.
// An empty flow is never satisfied.
func (f Flow) SatisfiedBy(completed map[StageType]any) bool {
	if len(f.Stages) == 0 {
		return false
	}
	for _, st := range f.Stages {
		if _, ok := completed[st]; !ok {
			return false
		}
	}
	return true
}

// FlowSet is the set of acceptable flows in declaration order.
type FlowSet []Flow

// Contains reports whether any flow includes stage.
func (fs FlowSet) Contains(stage StageType) bool {
	for _, f := range fs {
		for _, st := range f.Stages {
			if st == stage {
				return true
			}
		}
	}
	return false
}
