package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/womat/mbserver"
)

type NodeStateResponse struct {
	Name        string `json:"name"`
	Unit        uint8  `json:"unit"`
	Temperature int8   `json:"temperature"`
	Word        uint32 `json:"word"`
	Sampling    bool   `json:"sampling"`
	Overridden  bool   `json:"overridden"`
}

func StartRestAPI(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /node/{name}", getNodeStateHandler)

	mux.HandleFunc("PUT /node/{name}/temperature", setTemperatureHandler)
	mux.HandleFunc("DELETE /node/{name}/temperature", clearTemperatureHandler)

	mux.HandleFunc("PUT /node/{name}/sampling", setSamplingHandler)
	mux.HandleFunc("POST /node/{name}/sampling/toggle", toggleSamplingHandler)

	log.Printf("RTU simulator REST API listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

/* ------------------------ helpers: json & errors ------------------------ */

func readJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

/* ----------------------- node lookup ------------------- */

func getSimNode(w http.ResponseWriter, name string) (*SimNode, *mbserver.Device, bool) {
	simNodesMu.RLock()
	node, ok := simNodes[name]
	simNodesMu.RUnlock()
	if !ok {
		fail(w, http.StatusNotFound, "node not found")
		return nil, nil, false
	}

	dev, ok := simulator.Devices[node.Unit]
	if !ok {
		fail(w, http.StatusNotFound, "unit not found")
		return nil, nil, false
	}
	return node, &dev, true
}

/* ------------------------------ handlers -------------------------------- */

func getNodeStateHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	node, dev, ok := getSimNode(w, name)
	if !ok {
		return
	}

	word := uint32(dev.InputRegisters[0])<<16 | uint32(dev.InputRegisters[1])
	writeJSON(w, http.StatusOK, NodeStateResponse{
		Name:        node.Name,
		Unit:        node.Unit,
		Temperature: int8(word),
		Word:        word,
		Sampling:    dev.Coils[0]&0x01 != 0,
		Overridden:  node.Overridden(),
	})
}

func setTemperatureHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	node, _, ok := getSimNode(w, name)
	if !ok {
		return
	}

	var payload struct {
		Value int `json:"value"`
	}
	if err := readJSON(r, &payload); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if payload.Value < -128 || payload.Value > 127 {
		fail(w, http.StatusBadRequest, "value must be -128..127")
		return
	}

	node.SetOverride(int8(payload.Value))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func clearTemperatureHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	node, _, ok := getSimNode(w, name)
	if !ok {
		return
	}

	node.ClearOverride()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func setSamplingHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	node, dev, ok := getSimNode(w, name)
	if !ok {
		return
	}

	var payload struct {
		Value uint8 `json:"value"`
	}
	if err := readJSON(r, &payload); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}

	dev.Coils[0] = payload.Value & 0x01
	updateNode(node)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sampling": dev.Coils[0]})
}

func toggleSamplingHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	node, dev, ok := getSimNode(w, name)
	if !ok {
		return
	}

	dev.Coils[0] ^= 1
	updateNode(node)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sampling": dev.Coils[0]})
}
