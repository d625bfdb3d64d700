package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sat-lms-api/internal/models"
	"github.com/noah-isme/sat-lms-api/pkg/jobs"
	"github.com/noah-isme/sat-lms-api/pkg/mailer"
)

const (
	jobTypeCourseCompleted   = "course_completed"
	jobTypeCertificateIssued = "certificate_issued"
	jobTypeAccessBlocked     = "access_blocked"
	jobTypeFeeReviewed       = "fee_reviewed"
)

type notificationPayload struct {
	StudentID   string
	CourseID    string
	Certificate *models.Certificate
	Fee         *models.FeeRecord
	Reason      string
}

// NotificationService delivers transactional email off the request path
// through a background queue. Enqueue failures are logged and dropped;
// notifications are best effort.
type NotificationService struct {
	students studentReader
	courses  courseReader
	mail     mailer.Mailer
	queue    *jobs.Queue
	logger   *zap.Logger
}

// NewNotificationService constructs the service and its queue. Call Start
// before use and Stop on shutdown.
func NewNotificationService(students studentReader, courses courseReader, mail mailer.Mailer, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mail == nil {
		mail = mailer.NoopMailer{}
	}
	s := &NotificationService{students: students, courses: courses, mail: mail, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyCourseCompleted queues a completion email for the student.
func (s *NotificationService) NotifyCourseCompleted(enrollment *models.Enrollment) {
	s.enqueue(jobTypeCourseCompleted, notificationPayload{
		StudentID: enrollment.StudentID,
		CourseID:  enrollment.CourseID,
	})
}

// NotifyCertificateIssued queues a certificate email.
func (s *NotificationService) NotifyCertificateIssued(certificate *models.Certificate) {
	s.enqueue(jobTypeCertificateIssued, notificationPayload{
		StudentID:   certificate.StudentID,
		Certificate: certificate,
	})
}

// NotifyAccessBlocked queues a block notice.
func (s *NotificationService) NotifyAccessBlocked(studentID, reason string) {
	s.enqueue(jobTypeAccessBlocked, notificationPayload{StudentID: studentID, Reason: reason})
}

// NotifyFeeReviewed queues a review outcome email.
func (s *NotificationService) NotifyFeeReviewed(fee *models.FeeRecord) {
	s.enqueue(jobTypeFeeReviewed, notificationPayload{StudentID: fee.StudentID, Fee: fee})
}

func (s *NotificationService) enqueue(jobType string, payload notificationPayload) {
	job := jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: payload}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("type", jobType), zap.String("student_id", payload.StudentID), zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		s.logger.Error("notification job has unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	student, err := s.students.FindByID(ctx, payload.StudentID)
	if err != nil {
		return fmt.Errorf("load student %s: %w", payload.StudentID, err)
	}

	msg, err := s.compose(ctx, job.Type, student, payload)
	if err != nil {
		return err
	}
	if err := s.mail.Send(msg); err != nil {
		return fmt.Errorf("send %s notification: %w", job.Type, err)
	}
	return nil
}

func (s *NotificationService) compose(ctx context.Context, jobType string, student *models.User, payload notificationPayload) (mailer.Message, error) {
	msg := mailer.Message{ToName: student.FullName, ToAddress: student.Email}
	switch jobType {
	case jobTypeCourseCompleted:
		course, err := s.courses.FindByID(ctx, payload.CourseID)
		if err != nil {
			return msg, fmt.Errorf("load course %s: %w", payload.CourseID, err)
		}
		msg.Subject = fmt.Sprintf("You completed %s", course.Title)
		msg.TextBody = fmt.Sprintf("Congratulations %s, you have completed every class in %s.", student.FullName, course.Title)
	case jobTypeCertificateIssued:
		msg.Subject = "Your certificate is ready"
		msg.TextBody = fmt.Sprintf("Your certificate for %s has been issued. Certificate number: %s.",
			payload.Certificate.CourseTitle, payload.Certificate.CertificateNumber)
	case jobTypeAccessBlocked:
		msg.Subject = "Course access suspended"
		msg.TextBody = fmt.Sprintf("Your course access has been suspended: %s. Please settle any pending fees to restore access.", payload.Reason)
	case jobTypeFeeReviewed:
		msg.Subject = fmt.Sprintf("Fee payment %s", payload.Fee.Status)
		msg.TextBody = fmt.Sprintf("Your payment proof for %d/%d was reviewed. Status: %s.",
			payload.Fee.Month, payload.Fee.Year, payload.Fee.Status)
	default:
		return msg, fmt.Errorf("unknown notification type %s", jobType)
	}
	return msg, nil
}
