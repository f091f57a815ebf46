package models

// CommissionShares - распределение комиссии между сторонами
type CommissionShares struct {
	Creator     int64 `json:"creator"`
	Participant int64 `json:"participant"`
}

// For возвращает долю комиссии для роли
func (s CommissionShares) For(role Role) int64 {
	switch role {
	case RoleCreator:
		return s.Creator
	case RoleParticipant:
		return s.Participant
	default:
		return 0
	}
}

// Shares делит замороженную комиссию сделки по commission_type.
// При split нечетная единица уходит участнику.
func (t *Trade) Shares() CommissionShares {
	switch t.CommissionType.Normalize() {
	case CommissionCreator:
		return CommissionShares{Creator: t.CommissionAmount}
	case CommissionPartner:
		return CommissionShares{Participant: t.CommissionAmount}
	case CommissionSplit:
		half := t.CommissionAmount / 2
		return CommissionShares{Creator: half, Participant: t.CommissionAmount - half}
	default:
		return CommissionShares{}
	}
}

// ComputeStats пересчитывает агрегаты пользователя по списку сделок
func ComputeStats(userID int64, trades []Trade) Stats {
	var st Stats

	for i := range trades {
		t := &trades[i]

		role := t.Role(userID)
		if role == RoleNone {
			continue
		}

		st.TotalTrades++

		switch t.Status {
		case TradeActive, TradeInProgress:
			st.ActiveTrades++
		case TradeCompleted:
			st.CompletedTrades++
			st.TotalVolume += t.Amount

			share := t.Shares().For(role)
			st.CommissionPaid += share
		case TradeCancelled:
			st.CancelledTrades++
		}
	}

	finished := st.CompletedTrades + st.CancelledTrades
	if finished > 0 {
		st.SuccessRate = float64(st.CompletedTrades) * 100 / float64(finished)
	}

	return st
}
