package server

import (
	"net/http"
)

// handleListAmbulances godoc
// @Title List ambulances
// @Description Returns the ambulance fleet registry.
// @Resource Ambulances
// @Produce json
// @Success 200 {array} AmbulanceResponse
// @Failure 500 {object} APIError
// @Route /v1/ambulances [get]
func (s *Server) handleListAmbulances(w http.ResponseWriter, r *http.Request) {
	rows, err := s.orc.Ambulances(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]AmbulanceResponse, 0, len(rows))
	for _, a := range rows {
		resp = append(resp, mapAmbulance(a))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleGetAmbulance godoc
// @Title Get ambulance
// @Description Returns a single ambulance by id.
// @Resource Ambulances
// @Produce json
// @Param ambulanceID path int true "Ambulance ID"
// @Success 200 {object} AmbulanceResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/ambulances/{ambulanceID} [get]
func (s *Server) handleGetAmbulance(w http.ResponseWriter, r *http.Request) {
	id, err := s.parseIDParam(r, "ambulanceID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidAmbulanceID, err.Error())
		return
	}

	a, err := s.orc.Ambulance(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, mapAmbulance(a))
}
