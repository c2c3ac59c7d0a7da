package farms

import (
	"context"
	"errors"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"cropconnect/db"
	"cropconnect/filemgr"
	"cropconnect/models"
	"cropconnect/utils"
)

type Handler struct {
	crops CropStore
	files *filemgr.Manager
}

func NewHandler(crops CropStore, files *filemgr.Manager) *Handler {
	return &Handler{crops: crops, files: files}
}

// cropForm returns the submitted listing fields. Multipart forms are parsed by
// the upload middleware; a JSON body is flattened into the same shape.
func cropForm(r *http.Request) (url.Values, error) {
	if r.MultipartForm != nil {
		return r.Form, nil
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.Form, nil
	}
	var in map[string]any
	if err := utils.DecodeJSON(r, &in); err != nil {
		return nil, err
	}
	form := url.Values{}
	for k, v := range in {
		switch x := v.(type) {
		case string:
			form.Set(k, x)
		case float64:
			form.Set(k, strconv.FormatFloat(x, 'f', -1, 64))
		case bool:
			form.Set(k, strconv.FormatBool(x))
		}
	}
	return form, nil
}

// applyCropForm copies the submitted fields onto c. On create every
// required field must be present.
func applyCropForm(r *http.Request, c *models.Crop, create bool) error {
	form, err := cropForm(r)
	if err != nil {
		return errors.New("Invalid request body")
	}
	if v, ok := formValue(form, "cropName"); ok {
		c.CropName = v
	}
	if v, ok := formValue(form, "variety"); ok {
		c.Variety = v
	}
	if v, ok := formValue(form, "grade"); ok {
		c.Grade = v
	}
	if v, ok := formValue(form, "unit"); ok {
		c.Unit = v
	}
	if v, ok := formValue(form, "location"); ok {
		c.Location = v
	}
	if v, ok := formValue(form, "pricePerUnit"); ok {
		c.PricePerUnit = utils.ParseFloat(v)
	}
	if v, ok := formValue(form, "quantityAvailable"); ok {
		c.QuantityAvailable = utils.ParseInt(v)
	}
	if d := utils.ParseDate(form.Get("arrivalDate")); d != nil {
		c.ArrivalDate = d
	}

	switch {
	case create && c.CropName == "":
		return models.FieldError("cropName", "is required")
	case c.PricePerUnit <= 0:
		return models.FieldError("pricePerUnit", "must be greater than 0")
	case c.QuantityAvailable < 0:
		return models.FieldError("quantityAvailable", "must not be negative")
	case create && c.Unit == "":
		return models.FieldError("unit", "is required")
	}
	return nil
}

func formValue(form url.Values, key string) (string, bool) {
	if _, ok := form[key]; !ok {
		return "", false
	}
	return strings.TrimSpace(form.Get(key)), true
}

func (h *Handler) CreateCrop(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	now := time.Now()
	crop := models.Crop{
		CropID:    utils.GetUUID(),
		SellerID:  utils.GetUserIDFromRequest(r),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyCropForm(r, &crop, true); err != nil {
		h.discardUpload(r)
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if img, ok := filemgr.FromContext(r.Context()); ok {
		crop.ImageURL, crop.ThumbURL = img.URL, img.ThumbURL
	}

	if err := h.crops.Create(ctx, crop); err != nil {
		log.Printf("[farms] create crop: %v", err)
		h.discardUpload(r)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create listing")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "crop": crop})
}

func (h *Handler) discardUpload(r *http.Request) {
	if img, ok := filemgr.FromContext(r.Context()); ok && h.files != nil {
		h.files.Remove(img.URL)
	}
}

func (h *Handler) ListCrops(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	q := r.URL.Query()
	skip, limit := utils.ParsePagination(r, 20, 100)
	filter := models.CropFilter{
		Search:   utils.FirstNonEmpty(q.Get("search"), q.Get("cropName")),
		Location: q.Get("location"),
		Grade:    q.Get("grade"),
		SellerID: q.Get("sellerId"),
		InStock:  q.Get("inStock") == "true",
		Skip:     skip,
		Limit:    limit,
	}
	if q.Get("mine") == "true" {
		filter.SellerID = utils.GetUserIDFromRequest(r)
	}

	crops, total, err := h.crops.List(ctx, filter)
	if err != nil {
		log.Printf("[farms] list crops: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch crops")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"crops":   crops,
		"total":   total,
		"page":    skip/limit + 1,
		"limit":   limit,
	})
}

func (h *Handler) GetCrop(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	crop, err := h.crops.Get(ctx, ps.ByName("id"))
	if err != nil {
		respondLookupError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "crop": crop})
}

func respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Crop not found")
		return
	}
	log.Printf("[farms] crop lookup: %v", err)
	utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch crop")
}

// ownedCrop loads the crop and checks that the caller is its seller.
func (h *Handler) ownedCrop(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) (models.Crop, bool) {
	crop, err := h.crops.Get(ctx, id)
	if err != nil {
		respondLookupError(w, err)
		return crop, false
	}
	if crop.SellerID != utils.GetUserIDFromRequest(r) {
		utils.RespondWithError(w, http.StatusForbidden, "You can only modify your own listings")
		return crop, false
	}
	return crop, true
}

func (h *Handler) UpdateCrop(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	crop, ok := h.ownedCrop(ctx, w, r, ps.ByName("id"))
	if !ok {
		h.discardUpload(r)
		return
	}
	if err := applyCropForm(r, &crop, false); err != nil {
		h.discardUpload(r)
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	oldImage := ""
	if img, ok := filemgr.FromContext(r.Context()); ok {
		oldImage = crop.ImageURL
		crop.ImageURL, crop.ThumbURL = img.URL, img.ThumbURL
	}
	crop.UpdatedAt = time.Now()

	if err := h.crops.Update(ctx, crop); err != nil {
		log.Printf("[farms] update crop %s: %v", crop.CropID, err)
		h.discardUpload(r)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update listing")
		return
	}
	if oldImage != "" && h.files != nil {
		h.files.Remove(oldImage)
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "crop": crop})
}

func (h *Handler) DeleteCrop(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	crop, ok := h.ownedCrop(ctx, w, r, ps.ByName("id"))
	if !ok {
		return
	}
	if err := h.crops.Delete(ctx, crop.CropID); err != nil {
		log.Printf("[farms] delete crop %s: %v", crop.CropID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete listing")
		return
	}
	if h.files != nil {
		h.files.Remove(crop.ImageURL)
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "message": "Listing deleted"})
}
