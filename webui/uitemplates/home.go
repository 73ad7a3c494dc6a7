package uitemplates

type HomeParams struct {
	PageParams

	IsDonor bool
}

var homeText = `{{define "title"}}Home{{end}}

{{define "content"}}
<h1>Kurudhi Koodai</h1>
{{if .ActiveUser.LoggedIn}}
<ul>
  <li><a href="/list-requests">Blood requests needing donors</a></li>
  <li><a href="/list-requests?mine=1">My requests</a></li>
  <li><a href="/create-request">Post a blood request</a></li>
  {{if not .IsDonor}}<li><a href="/register-donor">Register as a donor</a></li>{{end}}
  {{if .ActiveUser.Reviewer}}<li><a href="/list-requests?status=received">Requests awaiting review</a></li>{{end}}
</ul>
{{else}}
<p>Connect blood donors with patients who need them.</p>
<a href="/log-in" class="btn btn-primary">Log In</a>
<a href="/sign-up" class="btn btn-secondary">Sign Up</a>
{{end}}
{{end}}
`

var homeTemplate = mustPage("home", homeText)

func HomePage(params *HomeParams) ([]byte, error) {
	return execute(homeTemplate, params)
}
