package api

import (
	"net/http"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/registry"
)

type donorView struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone"`
	City             string     `json:"city,omitempty"`
	BloodGroup       string     `json:"bloodGroup"`
	LastDonationDate *time.Time `json:"lastDonationDate,omitempty"`
}

func viewDonor(d *dbtypes.Donor) *donorView {
	return &donorView{
		ID:               d.ID,
		Email:            d.Email,
		Name:             d.Name,
		Phone:            d.Phone,
		City:             d.City,
		BloodGroup:       d.BloodGroup,
		LastDonationDate: d.LastDonationDate,
	}
}

type registerDonorBody struct {
	Name       string `json:"name" validate:"required,max=200"`
	Phone      string `json:"phone" validate:"required,max=32"`
	City       string `json:"city" validate:"max=100"`
	BloodGroup string `json:"bloodGroup" validate:"required,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
}

func (a *API) registerDonorHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	ctx := r.Context()

	body := &registerDonorBody{}
	if err := a.decodeBody(w, r, body, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	donor, err := a.registry.Register(ctx, user, &registry.Registration{
		Name:       body.Name,
		Phone:      body.Phone,
		City:       body.City,
		BloodGroup: body.BloodGroup,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, viewDonor(donor))
}

func (a *API) getOwnDonorHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	ctx := r.Context()

	donor, err := a.registry.Get(ctx, user.ID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, viewDonor(donor))
}
