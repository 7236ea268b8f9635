package sqlrepository

import (
	"errors"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/go-sql-driver/mysql"
	"github.com/restpay/payments/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

type Repositories struct {
	Customer domain.CustomerRepository
	Source   domain.SourceRepository
	Charge   domain.ChargeRepository
	Refund   domain.RefundRepository
}

// NewRepositories wires the GORM repositories. redisClient may be nil, in
// which case charges are read straight from the database.
func NewRepositories(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) *Repositories {
	charges := NewChargeRepository(db, redisClient, logger)
	return &Repositories{
		Customer: NewCustomerRepository(db, charges, logger),
		Source:   NewSourceRepository(db, logger),
		Charge:   charges,
		Refund:   NewRefundRepository(db, logger),
	}
}

func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
