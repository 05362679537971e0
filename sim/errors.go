package sim

import "fmt"

// ContractKind classifies a violation of the behavior-function contract.
type ContractKind string

const (
	// BadDelay is a negative delay passed to a wait.
	BadDelay ContractKind = "bad-delay"
	// BadYield is a source or sink returning a batch size below one.
	BadYield ContractKind = "bad-yield"
	// NonSuspending is a controller iteration that never advanced time.
	NonSuspending ContractKind = "non-suspending"
	// InfiniteLoop is a behavior loop that can never make the clock
	// progress, or that exceeded an Inspector probe budget.
	InfiniteLoop ContractKind = "infinite-loop"
	// BehaviorPanic is an unclassified panic escaping a behavior function.
	BehaviorPanic ContractKind = "behavior-panic"
)

// ConfigError reports an invalid process definition. Component names the
// order, station or factory section the problem belongs to.
type ConfigError struct {
	Component string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid process definition: %s: %s", e.Component, e.Reason)
}

// ContractError reports a behavior function breaking the runtime contract.
// Component and Function locate the offending user code.
type ContractError struct {
	Kind      ContractKind
	Component string
	Function  string
	Detail    string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract violation (%s) in %s of %s: %s",
		e.Kind, e.Function, e.Component, e.Detail)
}
