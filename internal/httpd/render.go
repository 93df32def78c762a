package httpd

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/speedwagon-io/envstream/internal/model"
)

// RenderHTML renders one heading and list per sensor. Values are truncated to
// integers.
func RenderHTML(snaps []model.SensorSnapshot) string {
	var b strings.Builder
	for _, s := range snaps {
		fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(s.Name))
		b.WriteString("<ul>\n")
		for _, r := range s.Readings() {
			fmt.Fprintf(&b, "<li>%s: %d %s</li>\n",
				html.EscapeString(r.Name), truncate(r.Value), html.EscapeString(r.Unit))
		}
		b.WriteString("</ul>\n")
	}
	return b.String()
}

// truncate converts toward zero, saturating at the int32 bounds. NaN maps to 0.
func truncate(v float32) int32 {
	switch {
	case math.IsNaN(float64(v)):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>envstream</title>
</head>
<body>
<div id="sensor-data"></div>
<script>
function updateSensorData() {
  fetch("/sensors")
    .then(function (resp) { return resp.text(); })
    .then(function (body) { document.getElementById("sensor-data").innerHTML = body; });
}
updateSensorData();
setInterval(updateSensorData, 1000);
</script>
</body>
</html>
`
