package main

import "homekeep/cmd/hk/root"

func main() {
	root.Execute()
}
