package main

// demoDocument drives the built-in synthetic scene so the server can run
// without any external data. It exercises all four layer variants.
const demoDocument = `{
  "dimensions": {"case": "time", "x": "x", "y": "y"},
  "image": {"grid-width": 256, "max-zoom": 4},
  "crs": "EPSG:27700",
  "group": "Scene ${str(data['time'].data)[0:10]}",
  "info": {
    "Time": "${str(data['time'].data)[0:10]}",
    "Position": "${fixed(lat, 4)}, ${fixed(lon, 4)}"
  },
  "layers": {
    "st": {
      "type": "single",
      "label": "Surface Temperature",
      "band": "ST",
      "min_value": 270,
      "max_value": 300,
      "cmap": "rainbow",
      "data_label": "ST: ${fixed(value, 2)} K"
    },
    "cloud": {
      "type": "mask",
      "label": "Cloud",
      "band": "QA_PIXEL",
      "mask": 8,
      "colour": "white"
    },
    "truecolour": {
      "type": "rgb",
      "label": "True Colour",
      "red_band": "SR_B4",
      "green_band": "SR_B3",
      "blue_band": "SR_B2"
    },
    "basemap": {
      "type": "wms",
      "label": "Base Map",
      "url": "https://ows.example.org/wms?service=WMS&request=GetMap&layers=osm&width={WIDTH}&height={HEIGHT}&bbox={XMIN},{YMIN},{XMAX},{YMAX}&crs=EPSG:27700&format=image/png",
      "scale": 1
    }
  }
}`
