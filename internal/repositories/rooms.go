package repositories

import (
	"time"

	"gorm.io/gorm"

	"librarycore/internal/models"
)

type StudyRoomRepository interface {
	Create(db *gorm.DB, room *models.StudyRoom) error
	GetByID(db *gorm.DB, id int64) (*models.StudyRoom, error)
	GetByIDForUpdate(db *gorm.DB, id int64) (*models.StudyRoom, error)
}

type ReservationRepository interface {
	Create(db *gorm.DB, reservation *models.Reservation) error
	GetByIDForUpdate(db *gorm.DB, id int64) (*models.Reservation, error)
	Delete(db *gorm.DB, id int64) error
	// CountOverlapping counts reservations of the room intersecting [start, end),
	// ignoring excludeID when it is non-nil.
	CountOverlapping(db *gorm.DB, roomID int64, start, end time.Time, excludeID *int64) (int64, error)
	// CountCovering counts reservations of the room holding the instant at,
	// that is start_time <= at < end_time.
	CountCovering(db *gorm.DB, roomID int64, at time.Time) (int64, error)
	ListOverlapping(db *gorm.DB, roomID int64, start, end time.Time) ([]models.Reservation, error)
}

type studyRoomRepository struct {
	db *gorm.DB
}

func NewStudyRoomRepository(db *gorm.DB) StudyRoomRepository {
	return &studyRoomRepository{db: db}
}

func (r *studyRoomRepository) Create(db *gorm.DB, room *models.StudyRoom) error {
	return pick(db, r.db).Create(room).Error
}

func (r *studyRoomRepository) GetByID(db *gorm.DB, id int64) (*models.StudyRoom, error) {
	var room models.StudyRoom
	if err := pick(db, r.db).First(&room, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *studyRoomRepository) GetByIDForUpdate(db *gorm.DB, id int64) (*models.StudyRoom, error) {
	var room models.StudyRoom
	if err := forUpdate(pick(db, r.db)).First(&room, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(db *gorm.DB, reservation *models.Reservation) error {
	return pick(db, r.db).Omit("Customer", "Room").Create(reservation).Error
}

func (r *reservationRepository) GetByIDForUpdate(db *gorm.DB, id int64) (*models.Reservation, error) {
	var res models.Reservation
	if err := forUpdate(pick(db, r.db)).First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) Delete(db *gorm.DB, id int64) error {
	return pick(db, r.db).Delete(&models.Reservation{}, "id = ?", id).Error
}

func (r *reservationRepository) CountOverlapping(db *gorm.DB, roomID int64, start, end time.Time, excludeID *int64) (int64, error) {
	q := pick(db, r.db).Model(&models.Reservation{}).
		Where("room_id = ? AND start_time < ? AND end_time > ?", roomID, end, start)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *reservationRepository) CountCovering(db *gorm.DB, roomID int64, at time.Time) (int64, error) {
	var n int64
	err := pick(db, r.db).Model(&models.Reservation{}).
		Where("room_id = ? AND start_time <= ? AND end_time > ?", roomID, at, at).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *reservationRepository) ListOverlapping(db *gorm.DB, roomID int64, start, end time.Time) ([]models.Reservation, error) {
	var res []models.Reservation
	err := pick(db, r.db).
		Where("room_id = ? AND start_time < ? AND end_time > ?", roomID, end, start).
		Order("start_time ASC").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}
