package attendance

import (
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

// NewServiceMock returns an attendance service whose absence notices are sent
// synchronously.
func NewServiceMock(db core.DB, repo Repository, schoolSvc school.ServiceInterface, mailSvc core.EmailService) ServiceInterface {
	svc := &service{
		db:        db,
		repo:      repo,
		schoolSvc: schoolSvc,
		mailSvc:   mailSvc,
	}
	svc.notify = svc.sendAbsenceNotices
	return svc
}
