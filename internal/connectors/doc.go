// Package connectors turns URLs into text. The Dispatcher picks an
// acquisition strategy by URL shape: video pages go to the transcript
// strategy, everything else to the static page fetcher, with an optional
// headless-browser render when a static page yields too little text.
package connectors
