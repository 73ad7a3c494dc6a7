package uitemplates

type CreateRequestParams struct {
	PageParams

	BloodGroups []string
}

var createRequestText = `
{{define "title"}}Post a Blood Request{{end}}

{{define "breadcrumbs" -}}
  <li class="breadcrumb-item"><a href="/">Home</a></li>
  <li class="breadcrumb-item active" aria-current="page"><a href="/create-request">Post a Request</a></li>
{{- end}}

{{define "content"}}

<h1>Post a Blood Request</h1>

<form method="POST">
  <div class="mb-3">
    <label for="patient-name" class="form-label">Patient Name</label>
    <input id="patient-name" type="text" name="patient-name" class="form-control" required>
  </div>

  <div class="mb-3">
    <label for="patient-age" class="form-label">Patient Age</label>
    <input id="patient-age" type="number" min="0" name="patient-age" class="form-control">
  </div>

  <div class="mb-3">
    <label for="patient-gender" class="form-label">Patient Gender</label>
    <input id="patient-gender" type="text" name="patient-gender" class="form-control">
  </div>

  <div class="mb-3">
    <label for="hospital" class="form-label">Hospital</label>
    <input id="hospital" type="text" name="hospital" class="form-control" required>
  </div>

  <div class="mb-3">
    <label for="reason" class="form-label">Reason</label>
    <textarea id="reason" name="reason" class="form-control"></textarea>
  </div>

  <div class="mb-3">
    <label for="blood-group" class="form-label">Blood Group</label>
    <select id="blood-group" name="blood-group" class="form-select">
      <option value="">Any</option>
      {{range .BloodGroups}}<option value="{{.}}">{{.}}</option>{{end}}
    </select>
  </div>

  <div class="mb-3 form-check">
    <input id="any-group" type="checkbox" name="any-group" value="1" class="form-check-input">
    <label for="any-group" class="form-check-label">Any blood group is acceptable</label>
  </div>

  <div class="mb-3">
    <label for="units-needed" class="form-label">Units Needed</label>
    <input id="units-needed" type="number" min="1" name="units-needed" value="1" class="form-control" required>
  </div>

  <button type="submit" class="btn btn-primary">Post Request</button>
</form>

{{end}}
`

var createRequestTemplate = mustPage("create-request", createRequestText)

func CreateRequestPage(params *CreateRequestParams) ([]byte, error) {
	return execute(createRequestTemplate, params)
}
