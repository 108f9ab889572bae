package stock

import (
	"time"

	"github.com/shopspring/decimal"

	"deja/internal/platform/dates"
)

// CurrentStock = Σin − Σout sobre los movimientos activos.
// El resultado no depende del orden de los movimientos.
func CurrentStock(movements []Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		if !m.Active() {
			continue
		}
		switch m.Direction {
		case DirectionIn:
			total = total.Add(m.Quantity)
		case DirectionOut:
			total = total.Sub(m.Quantity)
		}
	}
	return total
}

// DaysRemaining = floor(stock / rate).
// rate <= 0: nil (sin estimación, nunca se divide). stock <= 0: 0.
func DaysRemaining(stock, rate decimal.Decimal) *int {
	if !rate.IsPositive() {
		return nil
	}
	days := 0
	if stock.IsPositive() {
		days = int(stock.Div(rate).Floor().IntPart())
	}
	return &days
}

// Classify: critical si days <= critical, warning si days <= low, ok si no.
// days nil (sin consumo) es ok.
func Classify(days *int, th Thresholds) Level {
	if days == nil {
		return LevelOK
	}
	switch {
	case *days <= th.CriticalDays:
		return LevelCritical
	case *days <= th.LowDays:
		return LevelWarning
	default:
		return LevelOK
	}
}

// Evaluate arma el Status de un medicamento para today.
func Evaluate(stock, rate decimal.Decimal, th Thresholds, today time.Time) Status {
	st := Status{
		Stock:            stock,
		Negative:         stock.IsNegative(),
		DailyConsumption: rate,
		DaysRemaining:    DaysRemaining(stock, rate),
	}
	st.Level = Classify(st.DaysRemaining, th)
	if st.Negative {
		st.Level = LevelCritical
	}
	if st.DaysRemaining != nil {
		runOut := dates.AddDays(dates.Day(today), *st.DaysRemaining)
		st.RunOutDate = &runOut
	}
	return st
}

// SuggestBoxes: cajas para cubrir targetDays de consumo, mínimo 1.
func SuggestBoxes(st Status, boxQuantity decimal.Decimal, targetDays int) (decimal.Decimal, int64) {
	need := st.DailyConsumption.Mul(decimal.NewFromInt(int64(targetDays))).Sub(st.Stock)
	if !need.IsPositive() {
		need = decimal.Zero
	}
	if !boxQuantity.IsPositive() {
		return need, 1
	}
	boxes := need.Div(boxQuantity).Ceil().IntPart()
	if boxes < 1 {
		boxes = 1
	}
	return need, boxes
}
