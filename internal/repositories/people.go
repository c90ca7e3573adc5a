package repositories

import (
	"gorm.io/gorm"

	"librarycore/internal/models"
)

type CustomerRepository interface {
	GetByID(db *gorm.DB, id int64) (*models.Customer, error)
	GetByIDForUpdate(db *gorm.DB, id int64) (*models.Customer, error)
}

type AuthorRepository interface {
	GetByID(db *gorm.DB, id int64) (*models.Author, error)
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) GetByID(db *gorm.DB, id int64) (*models.Customer, error) {
	var c models.Customer
	if err := pick(db, r.db).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) GetByIDForUpdate(db *gorm.DB, id int64) (*models.Customer, error) {
	var c models.Customer
	if err := forUpdate(pick(db, r.db)).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

type authorRepository struct {
	db *gorm.DB
}

func NewAuthorRepository(db *gorm.DB) AuthorRepository {
	return &authorRepository{db: db}
}

func (r *authorRepository) GetByID(db *gorm.DB, id int64) (*models.Author, error) {
	var a models.Author
	if err := pick(db, r.db).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
