package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

const mysqlDuplicateEntry = 1062

type GormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	if db == nil {
		panic("store missing required dependency gorm db")
	}
	return &GormStore{db: db}
}

func (s *GormStore) Products() ProductRepository   { return &productRepo{db: s.db} }
func (s *GormStore) Customers() CustomerRepository { return &customerRepo{db: s.db} }
func (s *GormStore) Vouchers() VoucherRepository   { return &voucherRepo{db: s.db} }
func (s *GormStore) Orders() OrderRepository       { return &orderRepo{db: s.db} }
func (s *GormStore) Reviews() ReviewRepository     { return &reviewRepo{db: s.db} }

// ExecTx fn 返回错误或 panic 时回滚
func (s *GormStore) ExecTx(ctx context.Context, fn func(tx Store) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTxPanic, r)
		}
	}()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isDuplicate(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

var _ Store = (*GormStore)(nil)
