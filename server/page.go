package server

import (
	"path/filepath"
	"strings"

	"github.com/pdscreen/pdscreen/utils"
)

func isImage(ctype, name string) bool {
	if name == "" || filepath.Ext(name) == "" {
		return strings.HasPrefix(ctype, "image/")
	}
	return utils.IsImageContent(ctype, name)
}

const uploadPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Upload drawing</title>
<style>
body { font-family: sans-serif; margin: 2em; text-align: center; }
button { font-size: 1.2em; padding: 0.6em 1.2em; margin-top: 1em; }
#status { margin-top: 1em; }
</style>
</head>
<body>
<h2>Take or upload a photo of the drawing</h2>
<form id="upload">
<input type="file" name="image" accept="image/*" capture="environment" required>
<br>
<button type="submit">Upload</button>
</form>
<div id="status"></div>
<script>
document.getElementById("upload").addEventListener("submit", async (e) => {
	e.preventDefault();
	const status = document.getElementById("status");
	status.textContent = "Uploading...";
	try {
		const res = await fetch("/upload", { method: "POST", body: new FormData(e.target) });
		const body = await res.json();
		status.textContent = body.message;
	} catch (err) {
		status.textContent = "Upload failed: " + err;
	}
});
</script>
</body>
</html>
`
