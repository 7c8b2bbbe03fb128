/*
Package facefind locates human faces in still images with a pigo cascade
classifier and reports them as axis-aligned bounding boxes.

The image is decoded to a grayscale raster, scanned with a sliding window at
increasing scales and the raw hits are grouped into one box per face. Two
binaries are provided: faced, an HTTP service answering POST /detect_faces
uploads, and facefind, a command line tool working on files, directories,
URLs or stdin.

	$ facefind --help
	$ faced --help

The API can also be embedded directly:

	package main

	import (
		"fmt"
		"os"

		"github.com/esimov/facefind"
	)

	func main() {
		cascade, err := facefind.DefaultCascade()
		if err != nil {
			panic(err)
		}
		det, err := facefind.NewDetector(cascade, facefind.DefaultParams())
		if err != nil {
			panic(err)
		}
		data, _ := os.ReadFile("sample.jpg")
		res, err := facefind.NewProcessor(det).Process(data)
		if err != nil {
			fmt.Printf("Error detecting faces: %s", err.Error())
			return
		}
		fmt.Println(res.Count, res.Boxes)
	}
*/
package facefind
