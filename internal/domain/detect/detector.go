// Package detect runs the fast local object detector that gates expensive
// vision-model confirmation. It loads an SSD-style network through OpenCV's
// DNN module and filters its output for person hits.
package detect

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"sentrycam-go/internal/platform/errors"
)

// Detection is one object the network found in a frame.
type Detection struct {
	Class      string
	Confidence float64
	Box        image.Rectangle
}

// Detector inspects a JPEG frame and returns the objects it contains.
type Detector interface {
	Detect(frame []byte) ([]Detection, error)
	Close() error
}

// PersonDetected reports whether any detection is a person.
func PersonDetected(detections []Detection) bool {
	for _, d := range detections {
		if d.Class == "person" {
			return true
		}
	}
	return false
}

// cocoClasses maps SSD class IDs to labels for the subset the gate cares
// about. Unknown IDs keep a numeric placeholder.
var cocoClasses = map[int]string{
	1:  "person",
	2:  "bicycle",
	3:  "car",
	4:  "motorcycle",
	16: "bird",
	17: "cat",
	18: "dog",
}

const (
	inputSize  = 300
	inputScale = 1.0 / 127.5
	inputMean  = 127.5
)

// DNNDetector wraps a TensorFlow SSD graph loaded via gocv. The underlying
// network is not safe for concurrent Forward calls, so a mutex serializes
// inference.
type DNNDetector struct {
	mu         sync.Mutex
	net        gocv.Net
	confidence float64
}

// NewDNNDetector loads the frozen graph and its text config.
func NewDNNDetector(modelPath, configPath string, confidence float64) (*DNNDetector, error) {
	const op = "detect.NewDNNDetector"

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, errors.New(errors.KindDetect, op, "failed to load detector model")
	}

	if confidence <= 0 {
		confidence = 0.5
	}

	return &DNNDetector{net: net, confidence: confidence}, nil
}

// Detect decodes the JPEG frame, runs a forward pass, and returns every
// detection above the confidence threshold.
func (d *DNNDetector) Detect(frame []byte) ([]Detection, error) {
	const op = "detect.DNNDetector.Detect"

	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, errors.Wrap(errors.KindDetect, op, "decode frame", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, errors.New(errors.KindDetect, op, "frame decoded to an empty image")
	}

	blob := gocv.BlobFromImage(img, inputScale,
		image.Pt(inputSize, inputSize),
		gocv.NewScalar(inputMean, inputMean, inputMean, 0),
		true, false)
	defer blob.Close()

	rows, err := d.forward(blob)
	if err != nil {
		return nil, errors.Wrap(errors.KindDetect, op, "read network output", err)
	}

	bounds := img.Size()
	return parseRows(rows, bounds[1], bounds[0], d.confidence), nil
}

// forward runs one inference pass and returns an owned copy of the output
// rows. DataPtrFloat32 aliases the network's internal output blob, which
// the next Forward call overwrites, so the copy must happen under the lock.
func (d *DNNDetector) forward(blob gocv.Mat) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	rows, err := output.DataPtrFloat32()
	if err != nil {
		return nil, err
	}

	owned := make([]float32, len(rows))
	copy(owned, rows)
	return owned, nil
}

// parseRows converts the flat SSD output into detections. Each row is seven
// floats: batch, class ID, confidence, then the normalized box corners.
func parseRows(rows []float32, width, height int, threshold float64) []Detection {
	var detections []Detection

	for i := 0; i+7 <= len(rows); i += 7 {
		confidence := float64(rows[i+2])
		if confidence < threshold {
			continue
		}

		classID := int(rows[i+1])
		class, ok := cocoClasses[classID]
		if !ok {
			class = "unknown"
		}

		left := int(rows[i+3] * float32(width))
		top := int(rows[i+4] * float32(height))
		right := int(rows[i+5] * float32(width))
		bottom := int(rows[i+6] * float32(height))

		detections = append(detections, Detection{
			Class:      class,
			Confidence: confidence,
			Box:        image.Rect(left, top, right, bottom),
		})
	}

	return detections
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
