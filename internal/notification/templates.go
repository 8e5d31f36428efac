package notification

import (
	"fmt"
	"html"
	"math"
	"time"

	"github.com/tendant/pawfinder/pkg/domain"
)

// OTPMessage is the login code e-mail.
func OTPMessage(to, code string, ttl time.Duration) Message {
	minutes := minutesOf(ttl)
	return Message{
		Kind:    KindOTP,
		To:      to,
		Subject: "Your OTP Code",
		Text:    fmt.Sprintf("Your OTP code is: %s. It will expire in %s.", code, minutes),
		HTML: fmt.Sprintf(`<html><body>
		<p>Hello,</p>
		<p>Your <strong>One-Time Password (OTP)</strong> is:</p>
		<h2>%s</h2>
		<p>This code will expire in <strong>%s</strong>. Please do not share it with anyone.</p>
	</body></html>`, html.EscapeString(code), minutes),
	}
}

// MissingAlertMessage tells an owner their pet was reported missing.
func MissingAlertMessage(to string, pet *domain.Pet) Message {
	where := "No last known location was given."
	if pet.LastKnownLocation != nil {
		where = fmt.Sprintf("Last known location: %.6f, %.6f.",
			pet.LastKnownLocation.Latitude, pet.LastKnownLocation.Longitude)
	}
	return Message{
		Kind:    KindPetMissing,
		To:      to,
		Subject: fmt.Sprintf("%s has been marked as missing", pet.Name),
		Text: fmt.Sprintf("Your %s %s (pet #%d) is now listed as missing. %s\n"+
			"Neighbors using the app can see the report and contact you.", pet.Species, pet.Name, pet.ID, where),
		HTML: fmt.Sprintf(`<html><body>
		<h2>%s has been marked as missing</h2>
		<p>Your %s <strong>%s</strong> (pet #%d) is now listed as missing.</p>
		<p>%s</p>
		<p>Neighbors using the app can see the report and contact you.</p>
	</body></html>`, html.EscapeString(pet.Name), html.EscapeString(pet.Species), html.EscapeString(pet.Name), pet.ID, where),
	}
}

// FinderReport is what a finder submits after a photo match.
type FinderReport struct {
	Name    string
	Email   string
	Address string
}

// FinderReportMessage forwards a finder's contact details to the owner.
func FinderReportMessage(to string, pet *domain.Pet, report FinderReport) Message {
	return Message{
		Kind:    KindFinderReport,
		To:      to,
		Subject: fmt.Sprintf("Someone may have found %s", pet.Name),
		Text: fmt.Sprintf("Good news! Someone reported finding your pet %s (pet #%d).\n\n"+
			"Finder: %s\nEmail: %s\nAddress: %s\n",
			pet.Name, pet.ID, report.Name, report.Email, report.Address),
		HTML: fmt.Sprintf(`<html><body>
		<h2>Someone may have found %s</h2>
		<p>Good news! Someone reported finding your pet <strong>%s</strong> (pet #%d).</p>
		<ul>
			<li>Finder: %s</li>
			<li>Email: %s</li>
			<li>Address: %s</li>
		</ul>
	</body></html>`,
			html.EscapeString(pet.Name), html.EscapeString(pet.Name), pet.ID,
			html.EscapeString(report.Name), html.EscapeString(report.Email), html.EscapeString(report.Address)),
	}
}

func minutesOf(d time.Duration) string {
	m := int(math.Ceil(d.Minutes()))
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
