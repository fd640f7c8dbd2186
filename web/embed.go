// Package web provides the embedded pages served by rollcall.
//
// The pages are plain HTML with inline JavaScript. They talk to the REST API
// and the /ws channel, and keep a copy of the classroom list in the
// browser's localStorage so a restarted server can be restored via
// POST /api/classrooms/sync.
package web

import "embed"

// Assets is an embedded filesystem containing the pages.
//
// The filesystem structure is:
//
//	assets/
//	  index.html      - Classroom list with live attendance counts
//	  admin.html      - Create, edit and delete classrooms
//	  classroom.html  - Attendance view for one classroom (served at /{path})
//
//go:embed assets/*
var Assets embed.FS
