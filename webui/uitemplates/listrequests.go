package uitemplates

type ListRequestsParams struct {
	PageParams

	Heading  string
	Requests []ListRequestsRequest
}

type ListRequestsRequest struct {
	PatientName     string
	Hospital        string
	BloodGroup      string
	Units           string
	Status          string
	Created         string
	ShowRequestLink string
}

var listRequestsText = `{{define "title"}}{{.Heading}}{{end}}
{{define "breadcrumbs" -}}
<li class="breadcrumb-item"><a href="/">Home</a></li>
<li class="breadcrumb-item active" aria-current="page"><a href="/list-requests">Requests</a></li>
{{- end}}

{{define "content"}}
<h1>{{.Heading}}</h1>
{{if .Requests}}
<table class="table">
  <thead>
    <tr>
      <th>Patient</th>
      <th>Hospital</th>
      <th>Blood Group</th>
      <th>Units</th>
      <th>Status</th>
      <th>Posted</th>
    </tr>
  </thead>
  <tbody>
  {{range .Requests}}
    <tr>
      <td><a href="{{.ShowRequestLink}}">{{.PatientName}}</a></td>
      <td>{{.Hospital}}</td>
      <td>{{.BloodGroup}}</td>
      <td>{{.Units}}</td>
      <td>{{.Status}}</td>
      <td>{{.Created}}</td>
    </tr>
  {{end}}
  </tbody>
</table>
{{else}}
<p>No requests.</p>
{{end}}
{{end}}
`

var listRequestsTemplate = mustPage("list-requests", listRequestsText)

func ListRequestsPage(params *ListRequestsParams) ([]byte, error) {
	return execute(listRequestsTemplate, params)
}
