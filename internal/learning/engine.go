// Per-agent decision engine: the Q-learning loop an agent runs each time a
// move completes.
package learning

import (
	"math"

	"github.com/talgya/forager/internal/entropy"
	"github.com/talgya/forager/internal/geom"
)

// tieTolerance is how close two Q-values must be to count as tied for best.
const tieTolerance = 1e-9

// Params holds the learning hyperparameters and movement geometry.
type Params struct {
	LearningRate   float64 // alpha
	Discount       float64 // gamma
	Exploration    float64 // epsilon: probability of a uniformly random action
	BinSize        float64 // distance units per discrete state
	NumActions     int     // directions, evenly spaced over 360 degrees
	RewardLambda   float64 // decay of the distance reward
	GoalBonus      float64 // added when the target is reached on a step
	RevisitPenalty float64 // added (negative) when a step lands in a seen state
	WanderRadius   float64 // step length of one action
	AvoidRetries   int     // re-choices when a destination is visited or barren
}

// DefaultParams returns the reference hyperparameters.
func DefaultParams() Params {
	return Params{
		LearningRate:   0.1,
		Discount:       0.95,
		Exploration:    0.1,
		BinSize:        5,
		NumActions:     8,
		RewardLambda:   0.1,
		GoalBonus:      10,
		RevisitPenalty: -0.1,
		WanderRadius:   10,
		AvoidRetries:   10,
	}
}

// Reward returns exp(-lambda*currDist) - exp(-lambda*prevDist). It is positive
// when the step closed distance and negative when it lost ground, with a
// sharper signal near the target.
func Reward(lambda, prevDist, currDist float64) float64 {
	return math.Exp(-lambda*currDist) - math.Exp(-lambda*prevDist)
}

// Step reports what one update did.
type Step struct {
	PrevState int
	Action    int
	NewState  int
	Reward    float64
	Revisit   bool
	Q         float64 // Q(PrevState, Action) after the update
}

// Engine is one agent's learner. The QTable is shared; everything else
// belongs to the agent and dies with it.
type Engine struct {
	params  Params
	table   *QTable
	rng     entropy.Source
	visited *VisitedStates

	state   int
	action  int
	prevPos geom.Point3
}

// NewEngine creates a learner bound to a shared table and the agent's random stream.
func NewEngine(p Params, table *QTable, rng entropy.Source) *Engine {
	return &Engine{
		params:  p,
		table:   table,
		rng:     rng,
		visited: NewVisitedStates(),
	}
}

// Params returns the engine's hyperparameters.
func (e *Engine) Params() Params { return e.params }

// State returns the current discretized state.
func (e *Engine) State() int { return e.state }

// Action returns the action chosen for the move in progress.
func (e *Engine) Action() int { return e.action }

// Visited returns the set of states seen this run.
func (e *Engine) Visited() *VisitedStates { return e.visited }

// GetState discretizes the distance between position and target:
// floor(distance / binSize). Monotonic non-decreasing in distance.
func (e *Engine) GetState(position, target geom.Point3) int {
	return StateForDistance(position.Distance(target), e.params.BinSize)
}

// StateForDistance is the discretization used by GetState.
func StateForDistance(distance, binSize float64) int {
	if distance <= 0 || binSize <= 0 {
		return 0
	}
	return int(math.Floor(distance / binSize))
}

// ChooseAction picks an action epsilon-greedily. Ties for the best value are
// broken uniformly at random so no direction is favored.
func (e *Engine) ChooseAction(state int) int {
	n := e.params.NumActions
	if e.rng.Float64() < e.params.Exploration {
		return e.rng.IntN(n)
	}

	row := e.table.Row(state, n)
	maxQ := math.Inf(-1)
	for _, q := range row {
		if q > maxQ {
			maxQ = q
		}
	}

	best := make([]int, 0, n)
	for a, q := range row {
		if math.Abs(q-maxQ) <= tieTolerance {
			best = append(best, a)
		}
	}
	return best[e.rng.IntN(len(best))]
}

// ComputeDestination returns the point one wanderRadius away from position in
// the direction of action, measured clockwise from the agent's planar heading.
func (e *Engine) ComputeDestination(position, forward geom.Point3, action int) geom.Point3 {
	angle := float64(action) * (360.0 / float64(e.params.NumActions))
	heading := geom.Yaw(forward.Flat())
	if forward.Flat().IsZero() {
		heading = 0
	}
	dir := geom.FromYaw(heading + angle)
	return position.Add(dir.Scale(e.params.WanderRadius))
}

// Begin initializes the loop for a new agent at position and returns the
// first destination.
func (e *Engine) Begin(position, forward, target geom.Point3, avoid func(geom.Point3) bool) geom.Point3 {
	e.prevPos = position
	e.state = e.GetState(position, target)
	e.visited.Add(e.state)
	return e.NextDestination(position, forward, avoid)
}

// Update runs one learning step for the move that just completed. reached
// adds the goal bonus. The engine advances to the new state; the caller then
// asks NextDestination for the following move unless the run is over.
func (e *Engine) Update(position, target geom.Point3, reached bool) Step {
	newState := e.GetState(position, target)
	revisit := !e.visited.Add(newState)

	prevDist := e.prevPos.Distance(target)
	currDist := position.Distance(target)
	reward := Reward(e.params.RewardLambda, prevDist, currDist)
	if reached {
		reward += e.params.GoalBonus
	}
	if revisit {
		reward += e.params.RevisitPenalty
	}

	q := e.table.Learn(e.state, e.action, reward, newState, e.params.NumActions,
		e.params.LearningRate, e.params.Discount)

	step := Step{
		PrevState: e.state,
		Action:    e.action,
		NewState:  newState,
		Reward:    reward,
		Revisit:   revisit,
		Q:         q,
	}
	e.state = newState
	e.prevPos = position
	return step
}

// NextDestination chooses the next action and its destination. When avoid
// reports the candidate as visited or barren the action is re-chosen, up to
// AvoidRetries times; the last candidate is used if none passes.
func (e *Engine) NextDestination(position, forward geom.Point3, avoid func(geom.Point3) bool) geom.Point3 {
	e.action = e.ChooseAction(e.state)
	dest := e.ComputeDestination(position, forward, e.action)
	for i := 0; i < e.params.AvoidRetries && avoid != nil && avoid(dest); i++ {
		e.action = e.ChooseAction(e.state)
		dest = e.ComputeDestination(position, forward, e.action)
	}
	return dest
}
