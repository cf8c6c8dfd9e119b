// Package notify implements the scheduled notification fan-out and the
// emergency-report side effects. Fan-out is organization- and
// recipient-isolated: one misconfigured organization or one blocked
// recipient never aborts the rest of a run.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/ecxia/fleet-safety/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Check types the dispatcher runs.
const (
	// CheckTypePreWork alerts drivers missing today's pre-work report.
	CheckTypePreWork = "pre_work"
	// CheckTypePostWork alerts drivers missing today's post-work report.
	CheckTypePostWork = "post_work"
	// CheckTypeAdminSummary sends linked admins an aggregate submission summary.
	CheckTypeAdminSummary = "admin_summary"
	// CheckTypeMorningReminder reminds every linked driver to submit.
	CheckTypeMorningReminder = "morning_reminder"
)

// CheckTypes lists the accepted dispatch check types.
var CheckTypes = []string{CheckTypePreWork, CheckTypePostWork, CheckTypeAdminSummary, CheckTypeMorningReminder}

// IsValidCheckType reports whether s names a known check type.
func IsValidCheckType(s string) bool {
	for _, t := range CheckTypes {
		if s == t {
			return true
		}
	}
	return false
}

// PushFunc sends one push message using an organization's channel token.
// Production wires this to the LINE client; tests substitute a recorder.
type PushFunc func(ctx context.Context, accessToken, to, text string) error

// Dispatcher computes missing-submission sets per organization and fans out
// individual push messages.
type Dispatcher struct {
	db   *gorm.DB
	push PushFunc
	loc  *time.Location
	now  func() time.Time
}

// NewDispatcher constructs a Dispatcher using the given civil timezone.
func NewDispatcher(db *gorm.DB, push PushFunc, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return &Dispatcher{db: db, push: push, loc: loc, now: time.Now}
}

// Today returns the current civil date in the dispatcher's timezone.
func (d *Dispatcher) Today() string {
	return d.now().In(d.loc).Format("2006-01-02")
}

// Run executes one dispatch pass for the given check type across all
// organizations with outbound messaging configured. It returns the number
// of messages sent; per-recipient send failures are logged and skipped.
func (d *Dispatcher) Run(ctx context.Context, checkType string) (int, error) {
	if !IsValidCheckType(checkType) {
		return 0, fmt.Errorf("notify: unknown check type %q", checkType)
	}

	var orgs []models.Organization
	if errFind := d.db.WithContext(ctx).
		Where("line_channel_access_token IS NOT NULL").
		Find(&orgs).Error; errFind != nil {
		return 0, fmt.Errorf("notify: load organizations: %w", errFind)
	}

	today := d.Today()
	total := 0
	for _, org := range orgs {
		if org.LineChannelAccessToken == nil || *org.LineChannelAccessToken == "" {
			continue
		}
		if !toggleEnabled(org, checkType) {
			continue
		}

		sent, errOrg := d.runOrganization(ctx, org, checkType, today)
		total += sent
		if errOrg != nil {
			// Organization isolation: log and move on to the next tenant.
			log.Errorf("notify: org %d %s dispatch: %v", org.ID, checkType, errOrg)
		}
	}
	return total, nil
}

// toggleEnabled checks the organization's notification settings for the
// given check type.
func toggleEnabled(org models.Organization, checkType string) bool {
	settings := models.NotificationSettingsFromJSON(org.Settings)
	switch checkType {
	case CheckTypePreWork:
		return settings.PreWorkAlert.Enabled
	case CheckTypePostWork:
		return settings.PostWorkAlert.Enabled
	case CheckTypeAdminSummary:
		return settings.AdminSummary.Enabled
	case CheckTypeMorningReminder:
		return settings.MorningReminder.Enabled
	default:
		return false
	}
}

// runOrganization handles one organization's fan-out for one check type.
func (d *Dispatcher) runOrganization(ctx context.Context, org models.Organization, checkType, today string) (int, error) {
	drivers, errDrivers := d.linkedActiveDrivers(ctx, org.ID)
	if errDrivers != nil {
		return 0, errDrivers
	}
	if len(drivers) == 0 {
		return 0, nil
	}

	accessToken := *org.LineChannelAccessToken

	switch checkType {
	case CheckTypeMorningReminder:
		return d.sendToDrivers(ctx, accessToken, drivers, func(driver models.Driver) string {
			return fmt.Sprintf("おはようございます、%sさん。\n\n本日も安全運転でお願いします。\n業務前報告の提出をお願いします。", driver.Name)
		}), nil

	case CheckTypePreWork:
		missing, errMissing := d.missingDrivers(ctx, drivers, &models.PreWorkReport{}, "report_date", today)
		if errMissing != nil {
			return 0, errMissing
		}
		return d.sendToDrivers(ctx, accessToken, missing, func(driver models.Driver) string {
			return fmt.Sprintf("%sさん、業務前報告が未提出です。\n\n安全確認のため、早めの提出をお願いします。", driver.Name)
		}), nil

	case CheckTypePostWork:
		missing, errMissing := d.missingDrivers(ctx, drivers, &models.PostWorkReport{}, "report_date", today)
		if errMissing != nil {
			return 0, errMissing
		}
		return d.sendToDrivers(ctx, accessToken, missing, func(driver models.Driver) string {
			return fmt.Sprintf("%sさん、業務後報告が未提出です。\n\n本日の業務後報告の提出をお願いします。", driver.Name)
		}), nil

	case CheckTypeAdminSummary:
		return d.sendAdminSummary(ctx, org, drivers, today)
	}
	return 0, nil
}

// linkedActiveDrivers loads an organization's active drivers with a bound
// LINE account.
func (d *Dispatcher) linkedActiveDrivers(ctx context.Context, orgID uint64) ([]models.Driver, error) {
	var drivers []models.Driver
	if errFind := d.db.WithContext(ctx).
		Where("organization_id = ? AND status = ? AND line_user_id IS NOT NULL", orgID, models.DriverStatusActive).
		Find(&drivers).Error; errFind != nil {
		return nil, fmt.Errorf("load drivers: %w", errFind)
	}
	return drivers, nil
}

// submittedDriverIDs returns the driver ids having a submission row of the
// given model for today.
func (d *Dispatcher) submittedDriverIDs(ctx context.Context, drivers []models.Driver, model any, dateColumn, today string) (map[uint64]struct{}, error) {
	ids := make([]uint64, 0, len(drivers))
	for _, driver := range drivers {
		ids = append(ids, driver.ID)
	}

	var submitted []uint64
	if errFind := d.db.WithContext(ctx).Model(model).
		Where(dateColumn+" = ? AND driver_id IN ?", today, ids).
		Pluck("driver_id", &submitted).Error; errFind != nil {
		return nil, fmt.Errorf("load submissions: %w", errFind)
	}

	set := make(map[uint64]struct{}, len(submitted))
	for _, id := range submitted {
		set[id] = struct{}{}
	}
	return set, nil
}

// missingDrivers computes active linked drivers without a submission row of
// the given model for today.
func (d *Dispatcher) missingDrivers(ctx context.Context, drivers []models.Driver, model any, dateColumn, today string) ([]models.Driver, error) {
	submitted, errSubmitted := d.submittedDriverIDs(ctx, drivers, model, dateColumn, today)
	if errSubmitted != nil {
		return nil, errSubmitted
	}
	missing := make([]models.Driver, 0, len(drivers))
	for _, driver := range drivers {
		if _, ok := submitted[driver.ID]; !ok {
			missing = append(missing, driver)
		}
	}
	return missing, nil
}

// sendToDrivers pushes one message per driver, isolating failures.
func (d *Dispatcher) sendToDrivers(ctx context.Context, accessToken string, drivers []models.Driver, text func(models.Driver) string) int {
	sent := 0
	for _, driver := range drivers {
		if driver.LineUserID == nil {
			continue
		}
		if errPush := d.push(ctx, accessToken, *driver.LineUserID, text(driver)); errPush != nil {
			log.Warnf("notify: push to driver %d (%s) failed: %v", driver.ID, util.MaskName(driver.Name), errPush)
			continue
		}
		sent++
	}
	return sent
}

// sendAdminSummary composes the daily submission summary and pushes it to
// every linked admin of the organization.
func (d *Dispatcher) sendAdminSummary(ctx context.Context, org models.Organization, drivers []models.Driver, today string) (int, error) {
	preSubmitted, errPre := d.submittedDriverIDs(ctx, drivers, &models.PreWorkReport{}, "report_date", today)
	if errPre != nil {
		return 0, errPre
	}
	inspSubmitted, errInsp := d.submittedDriverIDs(ctx, drivers, &models.DailyInspection{}, "inspection_date", today)
	if errInsp != nil {
		return 0, errInsp
	}

	var preMissing, inspMissing []string
	for _, driver := range drivers {
		if _, ok := preSubmitted[driver.ID]; !ok {
			preMissing = append(preMissing, driver.Name)
		}
		if _, ok := inspSubmitted[driver.ID]; !ok {
			inspMissing = append(inspMissing, driver.Name)
		}
	}

	summary := composeAdminSummary(org.Name, today, len(drivers), len(preSubmitted), len(inspSubmitted), preMissing, inspMissing)

	var admins []models.AdminUser
	if errFind := d.db.WithContext(ctx).
		Where("organization_id = ? AND active = ? AND line_user_id IS NOT NULL", org.ID, true).
		Find(&admins).Error; errFind != nil {
		return 0, fmt.Errorf("load admins: %w", errFind)
	}
	if len(admins) == 0 {
		log.Infof("notify: org %d admin summary skipped, no linked admins", org.ID)
		return 0, nil
	}

	accessToken := *org.LineChannelAccessToken
	sent := 0
	for _, admin := range admins {
		if admin.LineUserID == nil {
			continue
		}
		if errPush := d.push(ctx, accessToken, *admin.LineUserID, summary); errPush != nil {
			log.Warnf("notify: push summary to admin %d failed: %v", admin.ID, errPush)
			continue
		}
		sent++
	}
	return sent, nil
}

// composeAdminSummary renders the aggregate summary text.
func composeAdminSummary(orgName, today string, total, preCount, inspCount int, preMissing, inspMissing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "【%s】本日の提出状況（%s）\n\n", orgName, today)
	fmt.Fprintf(&b, "📋 業務前報告: %d/%d名\n", preCount, total)
	if len(preMissing) > 0 {
		fmt.Fprintf(&b, "  未提出: %s\n", strings.Join(preMissing, "、"))
	}
	fmt.Fprintf(&b, "\n🔧 日常点検: %d/%d名\n", inspCount, total)
	if len(inspMissing) > 0 {
		fmt.Fprintf(&b, "  未提出: %s\n", strings.Join(inspMissing, "、"))
	}
	if len(preMissing) == 0 && len(inspMissing) == 0 {
		b.WriteString("\n✅ 全員提出済みです。")
	} else {
		b.WriteString("\n⚠️ 未提出者がいます。確認をお願いします。")
	}
	return b.String()
}
