package models

import "time"

// TradeType - сторона создателя сделки
type TradeType string

const (
	TradeSell TradeType = "sell" // создатель продает, участник покупает
	TradeBuy  TradeType = "buy"  // создатель покупает, участник продает
)

// CommissionType - кто платит комиссию сервиса
type CommissionType string

const (
	CommissionCreator     CommissionType = "creator"
	CommissionPartner     CommissionType = "partner"
	CommissionParticipant CommissionType = "participant" // синоним partner
	CommissionSplit       CommissionType = "split"
)

// Normalize сводит синонимы к каноничному значению
func (c CommissionType) Normalize() CommissionType {
	if c == CommissionParticipant {
		return CommissionPartner
	}

	return c
}

// TradeStatus - состояние сделки
type TradeStatus string

const (
	TradeActive     TradeStatus = "active"
	TradeInProgress TradeStatus = "in_progress"
	TradeCompleted  TradeStatus = "completed"
	TradeCancelled  TradeStatus = "cancelled"
)

// IsTerminal возвращает true для completed и cancelled
func (s TradeStatus) IsTerminal() bool {
	return s == TradeCompleted || s == TradeCancelled
}

// rank задает порядок состояний, переходы допустимы только вперед
func (s TradeStatus) rank() int {
	switch s {
	case TradeActive:
		return 0
	case TradeInProgress:
		return 1
	case TradeCompleted, TradeCancelled:
		return 2
	default:
		return -1
	}
}

// CanTransition проверяет переход по машине состояний сделки
func CanTransition(from, to TradeStatus) bool {
	if from.IsTerminal() || from.rank() < 0 || to.rank() < 0 {
		return false
	}

	switch to {
	case TradeInProgress:
		return from == TradeActive
	case TradeCompleted:
		return from == TradeInProgress
	case TradeCancelled:
		return true
	default:
		return false
	}
}

// Role - роль пользователя в сделке
type Role string

const (
	RoleNone        Role = ""
	RoleCreator     Role = "creator"
	RoleParticipant Role = "participant"
)

// Trade - эскроу-сделка между создателем и присоединившимся участником
type Trade struct {
	ID         int64  `json:"id"`
	SecretLink string `json:"secret_link"`
	ShareURL   string `json:"share_url,omitempty"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	CreatorID       int64  `json:"creator_id"`
	CreatorName     string `json:"creator_name"`
	CreatorUsername string `json:"creator_username,omitempty"`

	ParticipantID       *int64 `json:"participant_id"`
	ParticipantName     string `json:"participant_name,omitempty"`
	ParticipantUsername string `json:"participant_username,omitempty"`

	TradeType        TradeType      `json:"trade_type"`
	Amount           int64          `json:"amount"`
	CommissionType   CommissionType `json:"commission_type"`
	CommissionAmount int64          `json:"commission_amount"`

	Status               TradeStatus `json:"status"`
	CreatorConfirmed     bool        `json:"creator_confirmed"`
	ParticipantConfirmed bool        `json:"participant_confirmed"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`

	PendingSync bool `json:"pending_sync,omitempty"`
}

// HasParticipant возвращает true если к сделке уже присоединились
func (t *Trade) HasParticipant() bool {
	return t.ParticipantID != nil
}

// Role возвращает роль пользователя в сделке
func (t *Trade) Role(userID int64) Role {
	switch {
	case t.CreatorID == userID:
		return RoleCreator
	case t.ParticipantID != nil && *t.ParticipantID == userID:
		return RoleParticipant
	default:
		return RoleNone
	}
}

// IsParty возвращает true для создателя и участника
func (t *Trade) IsParty(userID int64) bool {
	return t.Role(userID) != RoleNone
}

// SellerRole возвращает роль продавца
func (t *Trade) SellerRole() Role {
	if t.TradeType == TradeSell {
		return RoleCreator
	}

	return RoleParticipant
}

// BuyerRole возвращает роль покупателя
func (t *Trade) BuyerRole() Role {
	if t.TradeType == TradeSell {
		return RoleParticipant
	}

	return RoleCreator
}

// Expired возвращает true если срок приглашения истек
func (t *Trade) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Clone возвращает независимую копию сделки
func (t Trade) Clone() Trade {
	if t.ParticipantID != nil {
		id := *t.ParticipantID
		t.ParticipantID = &id
	}

	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}

	if t.CancelledAt != nil {
		at := *t.CancelledAt
		t.CancelledAt = &at
	}

	return t
}

// StatusFilter - фильтр списка сделок
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterActive    StatusFilter = "active" // active + in_progress
	FilterCompleted StatusFilter = "completed"
	FilterCancelled StatusFilter = "cancelled"
)

// Match проверяет попадание сделки под фильтр
func (f StatusFilter) Match(t Trade) bool {
	switch f {
	case FilterActive:
		return t.Status == TradeActive || t.Status == TradeInProgress
	case FilterCompleted:
		return t.Status == TradeCompleted
	case FilterCancelled:
		return t.Status == TradeCancelled
	default:
		return true
	}
}

// Valid возвращает true для известных значений фильтра (пустое значение = all)
func (f StatusFilter) Valid() bool {
	switch f {
	case "", FilterAll, FilterActive, FilterCompleted, FilterCancelled:
		return true
	default:
		return false
	}
}
