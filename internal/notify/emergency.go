package notify

import (
	"context"
	"fmt"

	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/ecxia/fleet-safety/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"
)

// SubmitEmergency records an emergency report and rewrites the driver's
// shift for today to absent in the same transaction. Admin notification is
// best effort and happens after commit; a push failure never rolls back the
// stored report.
func (d *Dispatcher) SubmitEmergency(ctx context.Context, driver *models.Driver, reportType string, reason *string) (*models.EmergencyReport, error) {
	today := d.Today()

	report := models.EmergencyReport{
		OrganizationID: driver.OrganizationID,
		DriverID:       driver.ID,
		ReportDate:     today,
		ReportType:     reportType,
		Reason:         reason,
		SubmittedVia:   models.SubmittedViaLiff,
	}

	note := "緊急連絡: " + models.EmergencyTypeLabel(reportType)
	if reason != nil && *reason != "" {
		note = "緊急連絡: " + *reason
	}

	tx := d.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("notify: begin emergency tx: %w", tx.Error)
	}

	if errCreate := tx.Create(&report).Error; errCreate != nil {
		tx.Rollback()
		return nil, fmt.Errorf("notify: create emergency report: %w", errCreate)
	}

	shift := models.Shift{
		OrganizationID: driver.OrganizationID,
		DriverID:       driver.ID,
		ShiftDate:      today,
		Status:         models.ShiftStatusAbsent,
		Note:           &note,
		SubmittedBy:    models.ShiftSubmittedBySystem,
	}
	if errUpsert := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "driver_id"}, {Name: "shift_date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":       models.ShiftStatusAbsent,
			"note":         note,
			"submitted_by": models.ShiftSubmittedBySystem,
		}),
	}).Create(&shift).Error; errUpsert != nil {
		tx.Rollback()
		return nil, fmt.Errorf("notify: upsert absent shift: %w", errUpsert)
	}

	if errCommit := tx.Commit().Error; errCommit != nil {
		return nil, fmt.Errorf("notify: commit emergency tx: %w", errCommit)
	}

	d.notifyAdminsOfEmergency(ctx, driver, reportType, reason)
	return &report, nil
}

// notifyAdminsOfEmergency pushes an alert to every linked admin of the
// driver's organization. Failures are logged only.
func (d *Dispatcher) notifyAdminsOfEmergency(ctx context.Context, driver *models.Driver, reportType string, reason *string) {
	var org models.Organization
	if errFind := d.db.WithContext(ctx).First(&org, driver.OrganizationID).Error; errFind != nil {
		log.Warnf("notify: emergency alert, load org %d: %v", driver.OrganizationID, errFind)
		return
	}
	if org.LineChannelAccessToken == nil || *org.LineChannelAccessToken == "" {
		return
	}

	var admins []models.AdminUser
	if errFind := d.db.WithContext(ctx).
		Where("organization_id = ? AND active = ? AND line_user_id IS NOT NULL", org.ID, true).
		Find(&admins).Error; errFind != nil {
		log.Warnf("notify: emergency alert, load admins: %v", errFind)
		return
	}

	text := fmt.Sprintf("🚨 緊急連絡\n\n運転手: %s\n種別: %s", driver.Name, models.EmergencyTypeLabel(reportType))
	if reason != nil && *reason != "" {
		text += "\n理由: " + *reason
	}
	text += "\n\n本日のシフトを欠勤に変更しました。"

	for _, admin := range admins {
		if admin.LineUserID == nil {
			continue
		}
		if errPush := d.push(ctx, *org.LineChannelAccessToken, *admin.LineUserID, text); errPush != nil {
			log.Warnf("notify: emergency alert to admin %d (%s) failed: %v", admin.ID, util.MaskLineUserID(*admin.LineUserID), errPush)
		}
	}
}
