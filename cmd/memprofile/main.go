// Command memprofile uploads PDFs of increasing size against a running
// service instance and reports timing and memory behaviour. Writes
// cpu.prof and mem.prof for pprof.
package main

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"time"
)

func main() {
	// Start CPU profiling
	cpuFile, err := os.Create("cpu.prof")
	if err != nil {
		log.Fatal(err)
	}
	defer cpuFile.Close()

	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		log.Fatal(err)
	}
	defer pprof.StopCPUProfile()

	target := os.Getenv("UPLOAD_URL")
	if target == "" {
		target = "http://localhost:8000/api/upload"
	}

	client := &http.Client{Timeout: 5 * time.Minute}

	// Test different file sizes
	sizes := []int{
		1 * 1024 * 1024,  // 1MB
		5 * 1024 * 1024,  // 5MB
		10 * 1024 * 1024, // 10MB
		45 * 1024 * 1024, // just under the default limit
	}

	for _, size := range sizes {
		fmt.Printf("\nTesting %d MB upload...\n", size/(1024*1024))

		printMemStats("Before upload")

		body, contentType, err := buildPDFUpload(fmt.Sprintf("memtest-%d.pdf", size), size)
		if err != nil {
			log.Printf("Failed to build upload body: %v", err)
			continue
		}

		start := time.Now()
		resp, err := client.Post(target, contentType, body)
		if err != nil {
			log.Printf("Upload failed: %v", err)
			continue
		}
		resp.Body.Close()

		duration := time.Since(start)
		throughput := float64(size) / duration.Seconds() / 1024 / 1024

		fmt.Printf("Upload answered %d in %v (%.2f MB/s)\n", resp.StatusCode, duration, throughput)

		printMemStats("After upload")

		runtime.GC()
		time.Sleep(100 * time.Millisecond)
		printMemStats("After GC")
	}

	// Write memory profile
	memFile, err := os.Create("mem.prof")
	if err != nil {
		log.Fatal(err)
	}
	defer memFile.Close()

	runtime.GC()
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		log.Fatal(err)
	}

	fmt.Println("\nProfiling complete. Use 'go tool pprof' to analyze cpu.prof and mem.prof")
}

// buildPDFUpload assembles a multipart body whose file part starts with
// the PDF magic header followed by random padding up to size bytes.
func buildPDFUpload(filename string, size int) (*bytes.Buffer, string, error) {
	data := make([]byte, size)
	copy(data, "%PDF-1.4\n")
	if _, err := rand.Read(data[9:]); err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return &buf, mw.FormDataContentType(), nil
}

func printMemStats(label string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	fmt.Printf("%s:\n", label)
	fmt.Printf("  Alloc: %.2f MB\n", float64(m.Alloc)/1024/1024)
	fmt.Printf("  TotalAlloc: %.2f MB\n", float64(m.TotalAlloc)/1024/1024)
	fmt.Printf("  Sys: %.2f MB\n", float64(m.Sys)/1024/1024)
	fmt.Printf("  NumGC: %d\n", m.NumGC)
	fmt.Printf("  HeapAlloc: %.2f MB\n", float64(m.HeapAlloc)/1024/1024)
	fmt.Printf("  HeapInuse: %.2f MB\n", float64(m.HeapInuse)/1024/1024)
	fmt.Printf("  HeapObjects: %d\n", m.HeapObjects)
}
