package repositories

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"librarycore/internal/models"
)

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	List(db *gorm.DB) ([]models.Book, error)
	GetByID(db *gorm.DB, id int64) (*models.Book, error)
	CountAvailableCopies(db *gorm.DB) (map[int64]int64, error)
}

type BookCopyRepository interface {
	Create(db *gorm.DB, copy *models.BookCopy) error
	GetByID(db *gorm.DB, id int64) (*models.BookCopy, error)
	GetByIDForUpdate(db *gorm.DB, id int64) (*models.BookCopy, error)
	// FindAvailableForUpdate locks the first available copy of a book that no
	// other transaction holds.
	FindAvailableForUpdate(db *gorm.DB, bookID int64) (*models.BookCopy, error)
	// TransitionStatus moves a copy from one status to another and reports
	// whether a row matched.
	TransitionStatus(db *gorm.DB, id int64, from, to models.BookCopyStatus) (bool, error)
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	return pick(db, r.db).Create(book).Error
}

func (r *bookRepository) List(db *gorm.DB) ([]models.Book, error) {
	var books []models.Book
	if err := pick(db, r.db).Order("id").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) GetByID(db *gorm.DB, id int64) (*models.Book, error) {
	var book models.Book
	if err := pick(db, r.db).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) CountAvailableCopies(db *gorm.DB) (map[int64]int64, error) {
	var rows []struct {
		BookID int64
		N      int64
	}
	err := pick(db, r.db).Model(&models.BookCopy{}).
		Select("book_id, COUNT(*) AS n").
		Where("status = ?", models.BookCopyStatusAvailable).
		Group("book_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.BookID] = row.N
	}
	return counts, nil
}

type bookCopyRepository struct {
	db *gorm.DB
}

func NewBookCopyRepository(db *gorm.DB) BookCopyRepository {
	return &bookCopyRepository{db: db}
}

func (r *bookCopyRepository) Create(db *gorm.DB, copy *models.BookCopy) error {
	return pick(db, r.db).Create(copy).Error
}

func (r *bookCopyRepository) GetByID(db *gorm.DB, id int64) (*models.BookCopy, error) {
	var copy models.BookCopy
	if err := pick(db, r.db).First(&copy, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &copy, nil
}

func (r *bookCopyRepository) GetByIDForUpdate(db *gorm.DB, id int64) (*models.BookCopy, error) {
	var copy models.BookCopy
	if err := forUpdate(pick(db, r.db)).First(&copy, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &copy, nil
}

func (r *bookCopyRepository) FindAvailableForUpdate(db *gorm.DB, bookID int64) (*models.BookCopy, error) {
	var copy models.BookCopy
	err := pick(db, r.db).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("book_id = ? AND status = ?", bookID, models.BookCopyStatusAvailable).
		Order("id").
		First(&copy).Error
	if err != nil {
		return nil, err
	}
	return &copy, nil
}

func (r *bookCopyRepository) TransitionStatus(db *gorm.DB, id int64, from, to models.BookCopyStatus) (bool, error) {
	res := pick(db, r.db).Model(&models.BookCopy{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
