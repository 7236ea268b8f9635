package persistence

import (
	"encoding/json"
	"time"

	"github.com/restpay/payments/internal/domain"
	"gorm.io/datatypes"
)

// CustomerModel represents the database schema for customers
type CustomerModel struct {
	UserID    string        `gorm:"primaryKey;type:varchar(64)"`
	Charges   []ChargeModel `gorm:"foreignKey:CustomerID;references:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time     `gorm:"autoCreateTime"`
}

func (CustomerModel) TableName() string {
	return "customers"
}

func (m *CustomerModel) ToDomain() *domain.Customer {
	return &domain.Customer{
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}

func CustomerModelFromDomain(customer *domain.Customer) *CustomerModel {
	return &CustomerModel{
		UserID:    customer.UserID,
		CreatedAt: customer.CreatedAt,
	}
}

// SourceModel keeps provider specific fields as a JSON document
type SourceModel struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)"`
	Integration string         `gorm:"type:varchar(64);not null;index"`
	Details     datatypes.JSON `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
}

func (SourceModel) TableName() string {
	return "sources"
}

func (m *SourceModel) ToDomain() (*domain.Source, error) {
	details := map[string]any{}
	if len(m.Details) > 0 {
		if err := json.Unmarshal(m.Details, &details); err != nil {
			return nil, err
		}
	}
	return &domain.Source{
		ID:          m.ID,
		Integration: m.Integration,
		Details:     details,
		CreatedAt:   m.CreatedAt,
	}, nil
}

func SourceModelFromDomain(source *domain.Source) (*SourceModel, error) {
	details, err := json.Marshal(source.Details)
	if err != nil {
		return nil, err
	}
	return &SourceModel{
		ID:          source.ID,
		Integration: source.Integration,
		Details:     datatypes.JSON(details),
		CreatedAt:   source.CreatedAt,
	}, nil
}

// ChargeModel represents the database schema for charges
type ChargeModel struct {
	ID            string        `gorm:"primaryKey;type:varchar(36)"`
	Status        string        `gorm:"type:varchar(16);not null;index"`
	Amount        int64         `gorm:"not null"`
	Currency      string        `gorm:"type:varchar(16);not null"`
	IntegrationID string        `gorm:"type:varchar(255);not null;index:idx_charges_integration"`
	Integration   string        `gorm:"type:varchar(64);not null;index:idx_charges_integration"`
	CustomerID    *string       `gorm:"type:varchar(64);index"`
	SourceID      *string       `gorm:"type:varchar(36);index"`
	Source        *SourceModel  `gorm:"foreignKey:SourceID;constraint:OnDelete:SET NULL"`
	Refunds       []RefundModel `gorm:"foreignKey:ChargeID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time     `gorm:"autoCreateTime"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime"`
}

func (ChargeModel) TableName() string {
	return "charges"
}

// ToDomain converts database model to domain entity
func (m *ChargeModel) ToDomain() *domain.Charge {
	return &domain.Charge{
		ID:            m.ID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Status:        domain.ChargeStatus(m.Status),
		Amount:        m.Amount,
		Currency:      m.Currency,
		IntegrationID: m.IntegrationID,
		Integration:   m.Integration,
		CustomerID:    m.CustomerID,
		SourceID:      m.SourceID,
	}
}

// FromDomain converts domain entity to database model
func ChargeModelFromDomain(charge *domain.Charge) *ChargeModel {
	return &ChargeModel{
		ID:            charge.ID,
		Status:        string(charge.Status),
		Amount:        charge.Amount,
		Currency:      charge.Currency,
		IntegrationID: charge.IntegrationID,
		Integration:   charge.Integration,
		CustomerID:    charge.CustomerID,
		SourceID:      charge.SourceID,
		CreatedAt:     charge.CreatedAt,
		UpdatedAt:     charge.UpdatedAt,
	}
}

// RefundModel represents the database schema for refunds
type RefundModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	ChargeID  string    `gorm:"type:varchar(36);not null;index"`
	Amount    int64     `gorm:"not null"`
	Currency  string    `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (RefundModel) TableName() string {
	return "refunds"
}

func (m *RefundModel) ToDomain() *domain.Refund {
	return &domain.Refund{
		ID:        m.ID,
		ChargeID:  m.ChargeID,
		Amount:    m.Amount,
		Currency:  m.Currency,
		CreatedAt: m.CreatedAt,
	}
}

func RefundModelFromDomain(refund *domain.Refund) *RefundModel {
	return &RefundModel{
		ID:        refund.ID,
		ChargeID:  refund.ChargeID,
		Amount:    refund.Amount,
		Currency:  refund.Currency,
		CreatedAt: refund.CreatedAt,
	}
}

// AllModels lists the models in dependency order for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&CustomerModel{},
		&SourceModel{},
		&ChargeModel{},
		&RefundModel{},
	}
}
