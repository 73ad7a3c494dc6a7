package webui

import (
	"net/http"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/registry"
	"kurudhi-koodai/store"
	"kurudhi-koodai/webui/uitemplates"
)

func (u *WebUI) registerDonorGetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := u.requireUser(w, r)
	if !ok {
		return
	}
	u.renderRegisterDonor(w, r, user, "")
}

func (u *WebUI) renderRegisterDonor(w http.ResponseWriter, r *http.Request, user *dbtypes.User, userError string) {
	ctx := r.Context()

	params := &uitemplates.RegisterDonorParams{
		PageParams:  pageParams(user, userError),
		BloodGroups: dbtypes.BloodGroups,
	}

	donor, err := u.registry.Get(ctx, user.ID)
	switch {
	case err == nil:
		params.Registered = &uitemplates.RegisterDonorDonor{
			Name:       donor.Name,
			Phone:      donor.Phone,
			City:       donor.City,
			BloodGroup: donor.BloodGroup,
		}
		if donor.LastDonationDate != nil {
			params.Registered.LastDonationDate = donor.LastDonationDate.Format(dateFormat)
		}
	case !store.IsNotFound(err):
		internalError(ctx, w, "Error while looking up donor", err)
		return
	}

	content, err := uitemplates.RegisterDonorPage(params)
	writePage(ctx, w, content, err)
}

func (u *WebUI) registerDonorPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := u.requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	_, err := u.registry.Register(ctx, user, &registry.Registration{
		Name:       r.PostForm.Get("name"),
		Phone:      r.PostForm.Get("phone"),
		City:       r.PostForm.Get("city"),
		BloodGroup: r.PostForm.Get("blood-group"),
	})
	if err != nil {
		msg, ok := userMessage(err)
		if !ok {
			internalError(ctx, w, "Error while registering donor", err)
			return
		}
		u.renderRegisterDonor(w, r, user, msg)
		return
	}

	http.Redirect(w, r, "/register-donor", http.StatusFound)
}
