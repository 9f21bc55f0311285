package models

type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionShip     Action = "ship"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// 普通流程的状态机: (当前状态, 动作) -> 下一个状态
var transitions = map[OrderStatus]map[Action]OrderStatus{
	StatusPending: {
		ActionConfirm: StatusConfirmed,
		ActionCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		ActionShip:   StatusShipping,
		ActionCancel: StatusCancelled,
	},
	StatusShipping: {
		ActionComplete: StatusCompleted,
	},
}

var actionByTarget = map[OrderStatus]Action{
	StatusConfirmed: ActionConfirm,
	StatusShipping:  ActionShip,
	StatusCompleted: ActionComplete,
	StatusCancelled: ActionCancel,
}

func Transition(current OrderStatus, action Action) (OrderStatus, bool) {
	next, ok := transitions[current][action]
	return next, ok
}

// ActionFor pending 不是任何动作的目标
func ActionFor(target OrderStatus) (Action, bool) {
	a, ok := actionByTarget[target]
	return a, ok
}

func CanTransition(current, target OrderStatus) bool {
	action, ok := ActionFor(target)
	if !ok {
		return false
	}
	next, ok := Transition(current, action)
	return ok && next == target
}
