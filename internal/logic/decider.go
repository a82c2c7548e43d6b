package logic

import (
	"math/rand"
	"time"

	"github.com/sweeney/obstacle-rover/internal/drive"
)

// Coin returns true to turn left and false to turn right when surrounded.
type Coin func() bool

// RandomCoin returns a fair coin backed by math/rand.
func RandomCoin() Coin {
	return func() bool { return rand.Intn(2) == 0 }
}

// Rule is one branch of the decision list. Rules are evaluated in order and
// the first whose Match returns true produces the maneuver.
type Rule struct {
	Mode  Mode
	Match func(in Input) bool
	Plan  func(in Input) Maneuver
}

// Decider picks a maneuver from the current distances.
type Decider struct {
	cfg   Config
	coin  Coin
	rules []Rule
}

// NewDecider creates a Decider. A nil coin uses RandomCoin.
func NewDecider(cfg Config, coin Coin) *Decider {
	if cfg.SafeDistance <= 0 {
		cfg.SafeDistance = DefaultSafeDistance
	}
	if cfg.MaxStationary <= 0 {
		cfg.MaxStationary = DefaultMaxStationary
	}
	if coin == nil {
		coin = RandomCoin()
	}
	d := &Decider{cfg: cfg, coin: coin}
	d.rules = []Rule{
		{Mode: ModeSurrounded, Match: d.surrounded, Plan: d.escape},
		{Mode: ModeFrontBlocked, Match: d.frontBlocked, Plan: d.turnAway},
		{Mode: ModeLeftBlocked, Match: d.leftBlocked, Plan: d.veerRight},
		{Mode: ModeRightBlocked, Match: d.rightBlocked, Plan: d.veerLeft},
		{Mode: ModeClear, Match: func(Input) bool { return true }, Plan: d.cruise},
	}
	return d
}

// Config returns the effective thresholds.
func (d *Decider) Config() Config {
	return d.cfg
}

// Rules returns the ordered distance rules. Stall recovery is not part of the
// list because it is checked before sensors are read.
func (d *Decider) Rules() []Rule {
	return d.rules
}

// Stalled reports whether the robot has gone without moving for longer than
// MaxStationary.
func (d *Decider) Stalled(sinceMovement time.Duration) bool {
	return sinceMovement > d.cfg.MaxStationary
}

// Recover returns the stall recovery maneuver: back up, then stop.
func (d *Decider) Recover() Maneuver {
	return Maneuver{
		Mode: ModeStalled,
		Steps: []Step{
			{Command: drive.BackwardAt(RecoverySpeed), Hold: RecoveryHold},
			{Command: drive.Halt()},
		},
		SkipCycleDelay: true,
	}
}

// Decide evaluates the rules in order and returns the first match.
func (d *Decider) Decide(in Input) Maneuver {
	for _, r := range d.rules {
		if r.Match(in) {
			return r.Plan(in)
		}
	}
	// The last rule always matches.
	return d.cruise(in)
}

func (d *Decider) surrounded(in Input) bool {
	half := d.cfg.SafeDistance / 2
	t := in.Distances
	return t.Left < half && t.Front < half && t.Right < half
}

func (d *Decider) frontBlocked(in Input) bool {
	return in.Distances.Front < d.cfg.SafeDistance
}

func (d *Decider) leftBlocked(in Input) bool {
	return in.Distances.Left < d.cfg.SafeDistance
}

func (d *Decider) rightBlocked(in Input) bool {
	return in.Distances.Right < d.cfg.SafeDistance
}

func (d *Decider) escape(Input) Maneuver {
	turn := drive.TurnRightAt(SurroundedSpeed)
	if d.coin() {
		turn = drive.TurnLeftAt(SurroundedSpeed)
	}
	return Maneuver{
		Mode: ModeSurrounded,
		Steps: []Step{
			{Command: drive.Halt()},
			{Command: turn, Hold: SurroundedTurn},
			{Command: drive.Halt(), Hold: SurroundedPause},
		},
		SkipCycleDelay: true,
	}
}

// turnAway turns toward the more open side; ties go right.
func (d *Decider) turnAway(in Input) Maneuver {
	turn := drive.TurnRightAt(FrontTurnSpeed)
	if in.Distances.Left > in.Distances.Right {
		turn = drive.TurnLeftAt(FrontTurnSpeed)
	}
	return Maneuver{
		Mode: ModeFrontBlocked,
		Steps: []Step{
			{Command: turn, Hold: FrontTurnHold},
			{Command: drive.Halt(), Hold: SettlePause},
		},
	}
}

func (d *Decider) veerRight(Input) Maneuver {
	return Maneuver{
		Mode: ModeLeftBlocked,
		Steps: []Step{
			{Command: drive.TurnRightAt(SideTurnSpeed), Hold: SideTurnHold},
			{Command: drive.Halt(), Hold: SettlePause},
		},
	}
}

func (d *Decider) veerLeft(Input) Maneuver {
	return Maneuver{
		Mode: ModeRightBlocked,
		Steps: []Step{
			{Command: drive.TurnLeftAt(SideTurnSpeed), Hold: SideTurnHold},
			{Command: drive.Halt(), Hold: SettlePause},
		},
	}
}

func (d *Decider) cruise(in Input) Maneuver {
	return Maneuver{
		Mode:  ModeClear,
		Steps: []Step{{Command: drive.ForwardAt(d.CruiseSpeed(in.Distances.Min()))}},
	}
}

// CruiseSpeed picks the forward speed from the nearest obstacle.
func (d *Decider) CruiseSpeed(nearest float64) float64 {
	switch {
	case nearest > d.cfg.SafeDistance*2:
		return FastSpeed
	case nearest > d.cfg.SafeDistance*1.5:
		return MediumSpeed
	default:
		return SlowSpeed
	}
}
