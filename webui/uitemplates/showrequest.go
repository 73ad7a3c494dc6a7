package uitemplates

type ShowRequestParams struct {
	PageParams

	SelfLink string

	ID            string
	PatientName   string
	PatientAge    string
	PatientGender string
	Hospital      string
	Reason        string
	BloodGroup    string
	Units         string
	Status        string
	Created       string
	IsRequester   bool

	// Reviewer-only status buttons.
	StatusActions []string

	// Donation controls for the viewing user.
	CanDonate         bool
	DonateBlockedNote string
	NeedsRegistration bool

	Donations []*ShowRequestDonation
}

type ShowRequestDonation struct {
	DonationID string
	DonorID    string
	State      string
	Created    string
	Note       string

	// The code this viewer hands to the other party.
	CodeToShare string

	// Which code, if any, the viewer may submit.
	VerifySide string

	CanCancel bool
}

var showRequestText = `
{{define "title"}}Request: {{.PatientName}}{{end}}

{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item"><a href="/list-requests">Requests</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="{{.SelfLink}}">{{.PatientName}}</a></li>
{{- end}}

{{define "content"}}
<h1>Blood for {{.PatientName}}</h1>
<dl>
  <dt>Hospital</dt><dd>{{.Hospital}}</dd>
  {{if .PatientAge}}<dt>Age</dt><dd>{{.PatientAge}}</dd>{{end}}
  {{if .PatientGender}}<dt>Gender</dt><dd>{{.PatientGender}}</dd>{{end}}
  {{if .Reason}}<dt>Reason</dt><dd>{{.Reason}}</dd>{{end}}
  <dt>Blood Group</dt><dd>{{.BloodGroup}}</dd>
  <dt>Units</dt><dd>{{.Units}}</dd>
  <dt>Status</dt><dd>{{.Status}}</dd>
  <dt>Posted</dt><dd>{{.Created}}</dd>
</dl>

{{if .StatusActions}}
<form method="POST" action="/set-request-status" class="mb-3">
  <input type="hidden" name="request-id" value="{{.ID}}">
  {{range .StatusActions}}
  <button type="submit" name="status" value="{{.}}" class="btn btn-outline-primary">Mark {{.}}</button>
  {{end}}
</form>
{{end}}

{{if .CanDonate}}
<form method="POST" action="/donate" class="mb-3">
  <input type="hidden" name="request-id" value="{{.ID}}">
  <button type="submit" class="btn btn-danger">I will donate</button>
</form>
{{else if .NeedsRegistration}}
<p><a href="/register-donor">Register as a donor</a> to donate to this request.</p>
{{else if .DonateBlockedNote}}
<p class="text-muted">{{.DonateBlockedNote}}</p>
{{end}}

{{if .Donations}}
<h2>Donations</h2>
<table class="table">
  <thead>
    <tr>
      <th>Donor</th>
      <th>State</th>
      <th>Started</th>
      <th>Your Code</th>
      <th></th>
    </tr>
  </thead>
  <tbody>
  {{range .Donations}}
    <tr>
      <td>{{.DonorID}}</td>
      <td>{{.State}}{{if .Note}} ({{.Note}}){{end}}</td>
      <td>{{.Created}}</td>
      <td>{{if .CodeToShare}}<code>{{.CodeToShare}}</code>{{end}}</td>
      <td>
        {{if .VerifySide}}
        <form method="POST" action="/verify-code" class="d-inline">
          <input type="hidden" name="request-id" value="{{$.ID}}">
          <input type="hidden" name="donation-id" value="{{.DonationID}}">
          <input type="hidden" name="side" value="{{.VerifySide}}">
          <input type="text" name="code" inputmode="numeric" pattern="[0-9]{6}" placeholder="Code from the {{.VerifySide}}" required>
          <button type="submit" class="btn btn-sm btn-primary">Confirm</button>
        </form>
        {{end}}
        {{if .CanCancel}}
        <form method="POST" action="/cancel-donation" class="d-inline">
          <input type="hidden" name="request-id" value="{{$.ID}}">
          <input type="hidden" name="donation-id" value="{{.DonationID}}">
          <input type="text" name="reason" placeholder="Reason">
          <button type="submit" class="btn btn-sm btn-outline-secondary">Cancel</button>
        </form>
        {{end}}
      </td>
    </tr>
  {{end}}
  </tbody>
</table>
{{end}}
{{end}}
`

var showRequestTemplate = mustPage("show-request", showRequestText)

func ShowRequestPage(params *ShowRequestParams) ([]byte, error) {
	return execute(showRequestTemplate, params)
}
