package repositories

import (
	"gorm.io/gorm"

	"librarycore/internal/models"
)

type EventRepository interface {
	Create(db *gorm.DB, event *models.Event) error
	GetByID(db *gorm.DB, id int64) (*models.Event, error)
	GetByIDForUpdate(db *gorm.DB, id int64) (*models.Event, error)
}

type AttendanceRepository interface {
	CreateExhibition(db *gorm.DB, a *models.ExhibitionAttendance) error
	FindExhibition(db *gorm.DB, eventID, customerID int64) (*models.ExhibitionAttendance, error)
	DeleteExhibition(db *gorm.DB, id int64) error
	CountExhibition(db *gorm.DB, eventID int64) (int64, error)

	CreateSeminar(db *gorm.DB, a *models.SeminarAttendance) error
	FindSeminar(db *gorm.DB, eventID, authorID int64) (*models.SeminarAttendance, error)
	CountSeminar(db *gorm.DB, eventID int64) (int64, error)
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(db *gorm.DB, event *models.Event) error {
	return pick(db, r.db).Create(event).Error
}

func (r *eventRepository) GetByID(db *gorm.DB, id int64) (*models.Event, error) {
	var e models.Event
	if err := pick(db, r.db).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepository) GetByIDForUpdate(db *gorm.DB, id int64) (*models.Event, error) {
	var e models.Event
	if err := forUpdate(pick(db, r.db)).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

type attendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) CreateExhibition(db *gorm.DB, a *models.ExhibitionAttendance) error {
	return pick(db, r.db).Omit("Event", "Customer").Create(a).Error
}

func (r *attendanceRepository) FindExhibition(db *gorm.DB, eventID, customerID int64) (*models.ExhibitionAttendance, error) {
	var a models.ExhibitionAttendance
	err := pick(db, r.db).
		Where("event_id = ? AND customer_id = ?", eventID, customerID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attendanceRepository) DeleteExhibition(db *gorm.DB, id int64) error {
	return pick(db, r.db).Delete(&models.ExhibitionAttendance{}, "id = ?", id).Error
}

func (r *attendanceRepository) CountExhibition(db *gorm.DB, eventID int64) (int64, error) {
	var n int64
	err := pick(db, r.db).Model(&models.ExhibitionAttendance{}).
		Where("event_id = ?", eventID).
		Count(&n).Error
	return n, err
}

func (r *attendanceRepository) CreateSeminar(db *gorm.DB, a *models.SeminarAttendance) error {
	return pick(db, r.db).Omit("Event", "Author").Create(a).Error
}

func (r *attendanceRepository) FindSeminar(db *gorm.DB, eventID, authorID int64) (*models.SeminarAttendance, error) {
	var a models.SeminarAttendance
	err := pick(db, r.db).
		Where("event_id = ? AND author_id = ?", eventID, authorID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attendanceRepository) CountSeminar(db *gorm.DB, eventID int64) (int64, error) {
	var n int64
	err := pick(db, r.db).Model(&models.SeminarAttendance{}).
		Where("event_id = ?", eventID).
		Count(&n).Error
	return n, err
}
