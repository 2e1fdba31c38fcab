package engine

import (
	"math"
	"math/rand"
)

// Action names a power-affecting thing a robot can do or suffer
type Action string

const (
	ActionMove             Action = "move"
	ActionJumpEdge         Action = "jump-edge"
	ActionWait             Action = "wait"
	ActionBrace            Action = "brace"
	ActionPush             Action = "push"
	ActionGetPushed        Action = "get-pushed"
	ActionConsumeJuice     Action = "consume-juice"
	ActionConsumeMegaJuice Action = "consume-mega-juice"
	ActionDestroyEnemy     Action = "destroy-enemy"
	ActionCrushEnemy       Action = "crush-enemy"
	ActionFellInCrusher    Action = "fell-in-crusher"
)

// Cost is a power delta, either fixed or drawn from a generator each time it is resolved
type Cost struct {
	fixed int
	gen   func() int
}

// Fixed returns a constant cost
func Fixed(n int) Cost {
	return Cost{fixed: n}
}

// Random returns a cost evaluated by calling gen once per application
func Random(gen func() int) Cost {
	return Cost{gen: gen}
}

// Resolve evaluates the cost
func (c Cost) Resolve() int {
	if c.gen != nil {
		return c.gen()
	}
	return c.fixed
}

// CostTable maps actions to their power costs
type CostTable map[Action]Cost

// DefaultCosts builds the standard cost table. Random entries draw from rng.
func DefaultCosts(rng *rand.Rand) CostTable {
	between := func(lo, hi int) func() int {
		return func() int {
			return lo + int(math.Round(float64(hi-lo)*rng.Float64()))
		}
	}

	return CostTable{
		ActionMove:             Fixed(-1),
		ActionJumpEdge:         Fixed(0),
		ActionWait:             Fixed(-1),
		ActionBrace:            Fixed(-2),
		ActionPush:             Fixed(1),
		ActionGetPushed:        Fixed(-1),
		ActionConsumeJuice:     Random(between(3, 5)),
		ActionConsumeMegaJuice: Random(between(5, 9)),
		ActionDestroyEnemy:     Fixed(3),
		ActionCrushEnemy:       Fixed(3),
		ActionFellInCrusher:    Fixed(-2),
	}
}

// For returns the cost of an action, zero when the action is unknown
func (t CostTable) For(action Action) Cost {
	if cost, ok := t[action]; ok {
		return cost
	}
	return Fixed(0)
}

// AdjustPower applies cost to a robot and returns the delta actually applied.
// Losses are ignored while the robot is Energized. A robot whose power drops to zero
// or below is marked destroyed and RobotDestroyed is dispatched, at most once per robot.
func AdjustPower(bus *Bus, robot *Object, cost Cost) int {
	if !robot.IsRobot() {
		return 0
	}

	delta := cost.Resolve()
	if delta < 0 && robot.HasTag(Energized) {
		return 0
	}

	robot.Robot.Power += delta
	if robot.Robot.Power <= 0 && !robot.Destroyed {
		robot.Destroyed = true
		if bus != nil {
			bus.Dispatch(RobotDestroyed{Robot: robot})
		}
	}
	return delta
}
