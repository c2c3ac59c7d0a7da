package orders

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"cropconnect/models"
	"cropconnect/utils"
)

func sign(secret []byte, data string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// ReceiptPayload returns orderId|total|signature for the receipt QR code.
func ReceiptPayload(secret []byte, o models.Order) string {
	data := fmt.Sprintf("%s|%.2f", o.OrderID, o.TotalAmount)
	return data + "|" + sign(secret, data)
}

// VerifyReceiptPayload checks a scanned receipt code.
func VerifyReceiptPayload(secret []byte, payload string) bool {
	i := strings.LastIndex(payload, "|")
	if i < 0 {
		return false
	}
	return hmac.Equal([]byte(payload[i+1:]), []byte(sign(secret, payload[:i])))
}

// RenderReceipt draws the order as a one page PDF.
func RenderReceipt(o models.Order, qrPayload string) ([]byte, error) {
	qrPNG, err := qrcode.Encode(qrPayload, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "CropConnect Order Receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, "Order: "+o.OrderID)
	pdf.Ln(7)
	pdf.Cell(0, 8, "Placed: "+o.CreatedAt.Format("02 Jan 2006 15:04"))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s   Payment: %s (%s)", o.Status, o.PaymentStatus, o.PaymentMethod))
	pdf.Ln(7)
	if o.PickupSchedule.Date != nil {
		pdf.Cell(0, 8, "Pickup: "+o.PickupSchedule.Date.Format("02 Jan 2006")+" "+o.PickupSchedule.TimeSlot)
		pdf.Ln(7)
	}
	v := o.VehicleDetails
	pdf.Cell(0, 8, fmt.Sprintf("Vehicle: %s %s, driver %s (%s)", v.VehicleType, v.VehicleNumber, v.DriverName, v.DriverPhone))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 11)
	widths := []float64{70, 25, 25, 30, 30}
	for i, h := range []string{"Crop", "Qty", "Unit", "Price", "Total"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 11)
	for _, it := range o.Items {
		pdf.CellFormat(widths[0], 8, it.CropName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 8, fmt.Sprint(it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 8, it.Unit, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 8, fmt.Sprintf("%.2f", it.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 8, fmt.Sprintf("%.2f", it.Total), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(150, 9, "Total (INR)", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 9, fmt.Sprintf("%.2f", o.TotalAmount), "1", 0, "R", false, 0, "")
	pdf.Ln(14)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, pdf.GetY(), 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Receipt serves the order receipt PDF to its buyer or sellers.
func (s *Service) Receipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, ok := s.partyOrder(ctx, w, r, ps)
	if !ok {
		return
	}
	pdf, err := RenderReceipt(o, ReceiptPayload(s.receiptSecret, o))
	if err != nil {
		log.Printf("[orders] receipt %s: %v", o.OrderID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate receipt")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=receipt-"+shortID(o.OrderID)+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
