package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries the fields printed on a completion certificate.
type CertificateData struct {
	Number      string
	Code        string
	StudentName string
	CourseTitle string
	Grade       string
	IssuedAt    time.Time
	IssuerName  string
	Signatory   string
}

// CertificatePDF renders completion certificates as landscape A4 documents.
type CertificatePDF struct{}

// NewCertificatePDF constructs a certificate renderer.
func NewCertificatePDF() *CertificatePDF {
	return &CertificatePDF{}
}

// Render produces the PDF bytes for a single certificate.
func (r *CertificatePDF) Render(data CertificateData) ([]byte, error) {
	if data.StudentName == "" || data.CourseTitle == "" {
		return nil, fmt.Errorf("certificate requires student name and course title")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, 277, 190, "D")

	if data.IssuerName != "" {
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(0, 8, data.IssuerName, "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 28)
	pdf.CellFormat(0, 14, "CERTIFICATE OF COMPLETION", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 12, data.StudentName, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "has successfully completed the course", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, data.CourseTitle, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Grade: %s", data.Grade), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Issued on %s", data.IssuedAt.Format("2 January 2006")), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	if data.Signatory != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 6, data.Signatory, "", 1, "C", false, 0, "")
	}

	pdf.SetY(-35)
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Certificate No. %s", data.Number), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Verification code: %s", data.Code), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
