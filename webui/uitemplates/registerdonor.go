package uitemplates

type RegisterDonorParams struct {
	PageParams

	BloodGroups []string

	// Set once the user is registered.
	Registered *RegisterDonorDonor
}

type RegisterDonorDonor struct {
	Name             string
	Phone            string
	City             string
	BloodGroup       string
	LastDonationDate string
}

var registerDonorText = `
{{define "title"}}Donor Registration{{end}}

{{define "breadcrumbs" -}}
  <li class="breadcrumb-item"><a href="/">Home</a></li>
  <li class="breadcrumb-item active" aria-current="page"><a href="/register-donor">Donor Registration</a></li>
{{- end}}

{{define "content"}}
{{with .Registered}}
<h1>You are registered as a donor</h1>
<dl>
  <dt>Name</dt><dd>{{.Name}}</dd>
  <dt>Phone</dt><dd>{{.Phone}}</dd>
  <dt>City</dt><dd>{{.City}}</dd>
  <dt>Blood Group</dt><dd>{{.BloodGroup}}</dd>
  <dt>Last Donation</dt><dd>{{if .LastDonationDate}}{{.LastDonationDate}}{{else}}None recorded{{end}}</dd>
</dl>
<a href="/list-requests">Find a request to donate to</a>
{{else}}
<h1>Register as a Donor</h1>

<form method="POST">
  <div class="mb-3">
    <label for="name" class="form-label">Name</label>
    <input id="name" type="text" name="name" class="form-control" required>
  </div>

  <div class="mb-3">
    <label for="phone" class="form-label">Phone</label>
    <input id="phone" type="tel" name="phone" class="form-control" required>
  </div>

  <div class="mb-3">
    <label for="city" class="form-label">City</label>
    <input id="city" type="text" name="city" class="form-control">
  </div>

  <div class="mb-3">
    <label for="blood-group" class="form-label">Blood Group</label>
    <select id="blood-group" name="blood-group" class="form-select" required>
      {{range $.BloodGroups}}<option value="{{.}}">{{.}}</option>{{end}}
    </select>
  </div>

  <button type="submit" class="btn btn-primary">Register</button>
</form>
{{end}}
{{end}}
`

var registerDonorTemplate = mustPage("register-donor", registerDonorText)

func RegisterDonorPage(params *RegisterDonorParams) ([]byte, error) {
	return execute(registerDonorTemplate, params)
}
