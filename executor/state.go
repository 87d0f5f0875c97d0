package executor

// State is the executor's lifecycle state.
type State uint8

const (
	StateCreated State = iota
	StateModuleBound
	StateInstantiated
	StateArgsBound
	StateExecuted
	StateFinished
)

var stateNames = [...]string{
	StateCreated:      "Created",
	StateModuleBound:  "ModuleBound",
	StateInstantiated: "Instantiated",
	StateArgsBound:    "ArgsBound",
	StateExecuted:     "Executed",
	StateFinished:     "Finished",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Op names an executor operation in logs, errors and observations.
type Op string

const (
	OpSetModule    Op = "set_module"
	OpInstantiate  Op = "instantiate"
	OpSetArgs      Op = "set_args"
	OpRun          Op = "run"
	OpGetRets      Op = "get_rets"
	OpReset        Op = "reset"
	OpRegisterHost Op = "register_host_function"
	OpRestore      Op = "restore"
)

// Ops lists every operation, in lifecycle order.
var Ops = []Op{OpSetModule, OpInstantiate, OpSetArgs, OpRun, OpGetRets, OpReset, OpRegisterHost, OpRestore}
