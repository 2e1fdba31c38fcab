package engine

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// matchListener routes bus events back into the match that owns the bus.
// It runs with the match lock already held by whoever dispatched.
type matchListener struct {
	m *Match
}

// HandleEvent implements Listener
func (l *matchListener) HandleEvent(event Event) {
	switch e := event.(type) {
	case RobotDestroyed:
		l.m.onRobotDestroyed(e.Robot)
	case RobotCrushed:
		l.m.onRobotCrushed(e.Robot)
	case GameOver:
		l.m.onGameOver()
	}
}

func (m *Match) onRobotDestroyed(robot *Object) {
	if !robot.IsRobot() {
		return
	}
	robot.Destroyed = true
	m.grid.Detach(robot)

	switch robot.Type {
	case PlayerRobot:
		if m.player == robot {
			m.player = nil
		}
		m.log.WithField("robot", robot.ID).Info("player robot destroyed")
		m.bus.Dispatch(GameOver{})

	case EnemyRobot:
		m.applyKillBonus()
		m.countingDown = true
		m.log.WithFields(log.Fields{"robot": robot.ID, "kills": m.enemyKills}).Info("enemy destroyed")

		m.after(m.rules.CountdownCueDelay(), func() {
			m.audio.Play(CueCountdown)
		})
		m.after(m.rules.DestroyedRegenDelay(), func() {
			m.clearEnergized()
			if m.running {
				_ = m.regenerate(true)
			}
		})
	}
}

func (m *Match) onRobotCrushed(robot *Object) {
	if !robot.IsRobot() {
		return
	}

	switch robot.Type {
	case PlayerRobot:
		m.log.WithField("robot", robot.ID).Info("player fell in the crusher")
		if m.player != nil {
			AdjustPower(m.bus, m.player, m.costs.For(ActionFellInCrusher))
		}
		m.clearEnergized()
		if m.running {
			_ = m.regenerate(false)
		}

	case EnemyRobot:
		m.applyKillBonus()
		robot.Destroyed = true
		m.grid.Detach(robot)
		if m.player != nil {
			absorbed := m.costs.For(ActionCrushEnemy).Resolve() + robot.Robot.Power
			AdjustPower(m.bus, m.player, Fixed(absorbed))
		}
		m.countingDown = true
		m.log.WithFields(log.Fields{"robot": robot.ID, "kills": m.enemyKills}).Info("enemy crushed")

		m.after(m.rules.CrushedRegenDelay(), func() {
			m.clearEnergized()
			if m.running {
				_ = m.regenerate(false)
			}
		})
	}
}

func (m *Match) onGameOver() {
	if m.ended {
		return
	}
	m.cancelTimers()
	m.audio.Play(CuePlayerDestroyed)
	m.lockInput()
	m.running = false
	m.countingDown = false
	m.ended = true
	m.publish()
	m.log.WithFields(log.Fields{"level": m.level, "kills": m.enemyKills}).Info("game over")
}

// applyKillBonus strengthens future enemies and rewards the player
func (m *Match) applyKillBonus() {
	m.enemyLifeBonus++
	m.enemyKills++
	if m.player != nil {
		m.player.SetTag(Energized)
		AdjustPower(m.bus, m.player, m.costs.For(ActionDestroyEnemy))
	}
	m.audio.Play(CueExplosion)
}

func (m *Match) clearEnergized() {
	if m.player != nil {
		m.player.ClearTag(Energized)
	}
	if m.grid == nil {
		return
	}
	for _, robot := range m.grid.Robots() {
		robot.ClearTag(Energized)
	}
}

// regenerate builds the next level: a fresh map with every surviving robot scattered on it.
// A new enemy is spawned when spawnEnemy is set or when no enemy survived.
func (m *Match) regenerate(spawnEnemy bool) error {
	m.lockInput()

	robots := m.grid.Robots()
	for _, robot := range robots {
		m.grid.Detach(robot)
	}

	if err := m.generateMap(); err != nil {
		return m.fail(err)
	}
	for i := len(robots) - 1; i >= 0; i-- {
		if err := m.placeRandomly(robots[i]); err != nil {
			return m.fail(fmt.Errorf("scatter robots: %w", err))
		}
	}
	if spawnEnemy || m.grid.Count(EnemyRobot) < 1 {
		name := fmt.Sprintf("Dudu v%d", m.enemyKills+1)
		if _, err := m.spawnEnemy(name, DefaultEnemyOwner); err != nil {
			return m.fail(err)
		}
	}
	m.buildMusicPressure()

	m.countingDown = false
	m.level++
	m.unlockInput()
	m.publish()

	m.log.WithFields(log.Fields{
		"level":  m.level,
		"width":  m.grid.Width,
		"height": m.grid.Height,
	}).Info("level regenerated")
	return nil
}
