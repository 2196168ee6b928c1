// Package server implements the HTTP API of the floorplan advisor.
//
// # Endpoints
//
// The routes are declared in Endpoints:
//   - GET /: Welcome message
//   - POST /api/upload: Analyze a floorplan (multipart field "file")
//   - POST /api/chat: Follow-up question ({"message": "..."})
//   - GET /api/history: Stored context and chat history
//   - GET /file/{name}: Narrated reply as audio/mpeg
//   - GET /healthz: Liveness and OCR status
//
// # Upload Flow
//
// An upload is decoded and measured by the Extractor, sent to the Advisor
// as an analysis prompt, and the reply is narrated. The session store is
// updated only after every step succeeded, so a failed upload leaves the
// previous floorplan and its conversation intact.
//
// # Error Handling
//
// Error responses carry {"detail": "..."} with these status codes:
//   - 400: Malformed request, empty chat message, missing or oversized upload
//   - 404: Unknown audio artifact or route
//   - 500: Undecodable image or OCR engine failure
//   - 502: Advisor or narration failure, including timeouts
//
// # CORS
//
// Exactly one frontend origin is allowed, with credentials.
//
// # Usage
//
//	srv := server.New(server.Deps{...}, server.Options{FrontendOrigin: origin})
//	if err := srv.Run(ctx, ":8000"); err != nil {
//	    log.Fatal(err)
//	}
package server
