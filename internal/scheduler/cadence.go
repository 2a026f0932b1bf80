package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/persona-forge/internal/models"
)

var ErrInvalidCadence = errors.New("invalid cadence")

// Cadence is the three-tier interval set a plan is built from.
type Cadence struct {
	MiniIntervalDays int
	MainIntervalDays int
	HorizonDays      int
}

func DefaultCadence() Cadence {
	return Cadence{MiniIntervalDays: 15, MainIntervalDays: 30, HorizonDays: 90}
}

func (c Cadence) Validate() error {
	if c.MiniIntervalDays <= 0 || c.MainIntervalDays <= 0 || c.HorizonDays <= 0 {
		return fmt.Errorf("%w: intervals must be positive (mini=%d main=%d horizon=%d)",
			ErrInvalidCadence, c.MiniIntervalDays, c.MainIntervalDays, c.HorizonDays)
	}
	return nil
}

func cadenceOf(p models.CadencePlan) Cadence {
	return Cadence{
		MiniIntervalDays: p.MiniIntervalDays,
		MainIntervalDays: p.MainIntervalDays,
		HorizonDays:      p.HorizonDays,
	}
}

// BuildPlan lays out one horizon starting at the day of start. The capstone
// takes the last day; main dates fall on multiples of the main interval; mini
// dates fill the remaining multiples of the mini interval. Where tiers
// collide the higher tier keeps the day and the lower one is skipped, so no
// date is ever pushed.
func BuildPlan(start time.Time, c Cadence) (models.CadencePlan, error) {
	if err := c.Validate(); err != nil {
		return models.CadencePlan{}, err
	}

	day0 := models.Day(start)
	plan := models.CadencePlan{
		Start:            day0,
		MiniIntervalDays: c.MiniIntervalDays,
		MainIntervalDays: c.MainIntervalDays,
		HorizonDays:      c.HorizonDays,
	}

	for d := 1; d <= c.HorizonDays; d++ {
		var tier models.PostType
		switch {
		case d == c.HorizonDays:
			tier = models.PostTypeCapstone
		case d%c.MainIntervalDays == 0:
			tier = models.PostTypeMain
		case d%c.MiniIntervalDays == 0:
			tier = models.PostTypeMini
		default:
			continue
		}
		date := day0.AddDate(0, 0, d)
		plan.Dates = append(plan.Dates, models.DueDate{
			Tier:   tier,
			Day:    d,
			Date:   date,
			PostAt: PostTime(date),
		})
	}
	return plan, nil
}
