package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/servicehub/booking-api/internal/repository"
)

type appointmentRepository struct {
	db *sqlx.DB
}

type userRepository struct {
	db *sqlx.DB
}

type serviceDirectory struct {
	db *sqlx.DB
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewUserDirectory(db *sqlx.DB) repository.UserDirectory {
	return &userRepository{db: db}
}

func NewServiceDirectory(db *sqlx.DB) repository.ServiceDirectory {
	return &serviceDirectory{db: db}
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}
