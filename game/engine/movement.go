package engine

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Move resolves one step of robot in dir. It returns once every animation has played
// and the resulting state changes and events have been applied. Requests made while
// input is locked, or for robots that are not on the grid, are ignored.
func (m *Match) Move(ctx context.Context, robot *Object, dir Cardinal) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inputLocked || m.resolving || !robot.IsRobot() || !dir.Valid() {
		return OutcomeIgnored, nil
	}
	index, placed := robot.CellIndex()
	if !placed || robot.Destroyed {
		return OutcomeIgnored, nil
	}

	m.lockInput()
	m.resolving = true
	defer func() { m.resolving = false }()

	outcome, err := m.resolve(ctx, robot, index, dir)
	if err != nil {
		m.unlockInput()
		return outcome, err
	}

	m.log.WithFields(log.Fields{
		"robot":     robot.ID,
		"direction": dir,
		"outcome":   outcome,
	}).Debug("move resolved")
	if outcome != OutcomeIgnored {
		m.publish()
	}
	return outcome, m.err
}

func (m *Match) resolve(ctx context.Context, robot *Object, index int, dir Cardinal) (Outcome, error) {
	g := m.grid
	from := g.CoordsFromIndex(index)

	target, ok := g.Step(from, dir, false)
	if !ok {
		return m.jumpEdge(robot, from, dir), nil
	}

	occupant := g.Content(target)
	switch {
	case occupant == nil:
		return m.moveToEmpty(ctx, robot, index, target)
	case occupant.Type == EnemyRobot:
		return m.push(ctx, robot, index, occupant, target, dir)
	case occupant.Type == Crusher && !m.countingDown:
		return m.fallIntoCrusher(ctx, robot, index, target)
	}
	return m.reject(), nil
}

// jumpEdge wraps the robot to the opposite edge. It never pushes and plays no animation.
func (m *Match) jumpEdge(robot *Object, from Coords, dir Cardinal) Outcome {
	g := m.grid
	target, _ := g.Step(from, dir, true)
	if g.Content(target) != nil || !g.Place(robot, g.CoordsFromIndex(target), false) {
		return m.reject()
	}

	m.audio.Play(CueRobotJump)
	AdjustPower(m.bus, robot, m.costs.For(ActionJumpEdge))
	m.unlockInput()
	return OutcomeEdgeJump
}

func (m *Match) moveToEmpty(ctx context.Context, robot *Object, index, target int) (Outcome, error) {
	g := m.grid
	m.audio.Play(CueRobotMoves)

	anim, err := m.animation(AnimateMove, robot, target)
	if err != nil {
		return OutcomeIgnored, m.fail(err)
	}
	if err := m.await(func() error { return m.animator.Animate(ctx, anim) }); err != nil {
		return OutcomeIgnored, err
	}
	if !m.stillAt(g, robot, index) {
		return OutcomeIgnored, nil
	}

	if g.Place(robot, g.CoordsFromIndex(target), false) {
		AdjustPower(m.bus, robot, m.costs.For(ActionMove))
	}
	m.unlockInput()
	return OutcomeMoved, nil
}

// push moves the enemy one further cell in dir, crossing edges if needed, then follows it.
// An enemy pushed onto the crusher displaces it and is crushed.
func (m *Match) push(ctx context.Context, robot *Object, index int, enemy *Object, target int, dir Cardinal) (Outcome, error) {
	g := m.grid
	far, _ := g.Step(g.CoordsFromIndex(target), dir, true)
	farContent := g.Content(far)
	if farContent != nil && farContent.Type != Crusher {
		return m.reject(), nil
	}
	intoCrusher := farContent != nil

	m.audio.Play(CueRobotPushed)

	pusherAnim, err := m.animation(AnimateMove, robot, target)
	if err != nil {
		return OutcomeIgnored, m.fail(err)
	}
	enemyAnim, err := m.animation(AnimateMove, enemy, far)
	if err != nil {
		return OutcomeIgnored, m.fail(err)
	}
	enemyAnim.Delay = m.rules.PushStagger()

	err = m.await(func() error {
		group, gctx := errgroup.WithContext(ctx)
		group.Go(func() error { return m.animator.Animate(gctx, pusherAnim) })
		group.Go(func() error { return m.animator.Animate(gctx, enemyAnim) })
		return group.Wait()
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	if !m.stillAt(g, robot, index) || !m.stillAt(g, enemy, target) {
		return OutcomeIgnored, nil
	}

	outcome := OutcomePushed
	if g.Place(enemy, g.CoordsFromIndex(far), intoCrusher) {
		if intoCrusher {
			outcome = OutcomeCrushedEnemy
			m.bus.Dispatch(RobotCrushed{Robot: enemy})
		} else {
			AdjustPower(m.bus, enemy, m.costs.For(ActionGetPushed))
			AdjustPower(m.bus, robot, m.costs.For(ActionPush))
		}
	}

	if !robot.Destroyed && g == m.grid && g.Place(robot, g.CoordsFromIndex(target), false) {
		AdjustPower(m.bus, robot, m.costs.For(ActionMove))
	}
	m.unlockInput()
	return outcome, nil
}

func (m *Match) fallIntoCrusher(ctx context.Context, robot *Object, index, target int) (Outcome, error) {
	g := m.grid
	m.audio.Play(CueFellInCrusher)

	anim, err := m.animation(AnimateFall, robot, target)
	if err != nil {
		return OutcomeIgnored, m.fail(err)
	}
	if err := m.await(func() error { return m.animator.Animate(ctx, anim) }); err != nil {
		return OutcomeIgnored, err
	}
	if !m.stillAt(g, robot, index) {
		return OutcomeIgnored, nil
	}

	if g.Place(robot, g.CoordsFromIndex(target), true) {
		AdjustPower(m.bus, robot, m.costs.For(ActionMove))
	}
	m.unlockInput()
	m.bus.Dispatch(RobotCrushed{Robot: robot})
	return OutcomeFellInCrusher, nil
}

func (m *Match) reject() Outcome {
	m.audio.Play(CueRejection)
	m.unlockInput()
	return OutcomeRejected
}

// animation resolves the anchors of a subject moving to the cell at target
func (m *Match) animation(kind AnimationKind, subject *Object, target int) (Animation, error) {
	from, err := m.anchors.ObjectAnchor(m.grid, subject)
	if err != nil {
		return Animation{}, err
	}
	to, err := m.anchors.CellAnchor(m.grid, target)
	if err != nil {
		return Animation{}, err
	}
	return Animation{Kind: kind, Subject: subject.ID, From: from, To: to}, nil
}

// await runs fn with the match lock released
func (m *Match) await(fn func() error) error {
	m.mu.Unlock()
	defer m.mu.Lock()
	return fn()
}

// stillAt reports whether obj is still where it was when the move was planned.
// A level regeneration or game over during an animation supersedes the move.
func (m *Match) stillAt(g *Grid, obj *Object, index int) bool {
	if m.grid != g || !m.running || obj.Destroyed {
		return false
	}
	current, ok := obj.CellIndex()
	return ok && current == index
}
