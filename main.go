package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/vpcctl/cmd"
	"grimm.is/vpcctl/internal/brand"
	"grimm.is/vpcctl/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create-vpc":
		flags := newFlagSet("create-vpc")
		name := flags.String("name", "", "VPC name")
		cidr := flags.String("cidr", "", "VPC address block (e.g. 10.0.0.0/16)")
		parseFlags(flags, os.Args[2:])
		requireFlag(flags, "name", *name)
		requireFlag(flags, "cidr", *cidr)
		run(cmd.RunCreateVPC(*name, *cidr))

	case "delete-vpc":
		flags := newFlagSet("delete-vpc")
		name := flags.String("name", "", "VPC name")
		parseFlags(flags, os.Args[2:])
		requireFlag(flags, "name", *name)
		run(cmd.RunDeleteVPC(*name))

	case "create-subnet":
		flags := newFlagSet("create-subnet")
		vpc := flags.String("vpc", "", "VPC the subnet belongs to")
		name := flags.String("name", "", "Subnet name")
		cidr := flags.String("cidr", "", "Subnet address block (e.g. 10.0.1.0/24)")
		public := flags.Bool("public", false, "Give the subnet NAT access to the internet")
		iface := flags.String("internet-iface", "", "Host interface public traffic leaves through (required with -public)")
		parseFlags(flags, os.Args[2:])
		requireFlag(flags, "vpc", *vpc)
		requireFlag(flags, "name", *name)
		requireFlag(flags, "cidr", *cidr)
		run(cmd.RunCreateSubnet(*vpc, *name, *cidr, *public, *iface))

	case "delete-subnet":
		flags := newFlagSet("delete-subnet")
		vpc := flags.String("vpc", "", "VPC the subnet belongs to")
		name := flags.String("name", "", "Subnet name")
		cidr := flags.String("cidr", "", "Original subnet address block (omitting it leaves NAT and address state behind)")
		iface := flags.String("internet-iface", "", "Original internet interface, for public subnets")
		parseFlags(flags, os.Args[2:])
		requireFlag(flags, "vpc", *vpc)
		requireFlag(flags, "name", *name)
		run(cmd.RunDeleteSubnet(*vpc, *name, *cidr, *iface))

	case "peer-vpc":
		flags := newFlagSet("peer-vpc")
		vpcA := flags.String("vpc-a", "", "First VPC")
		vpcB := flags.String("vpc-b", "", "Second VPC")
		parseFlags(flags, os.Args[2:])
		requireFlag(flags, "vpc-a", *vpcA)
		requireFlag(flags, "vpc-b", *vpcB)
		run(cmd.RunPeerVPC(*vpcA, *vpcB))

	case "delete-peering":
		flags := newFlagSet("delete-peering")
		vpcA := flags.String("vpc-a", "", "First VPC")
		vpcB := flags.String("vpc-b", "", "Second VPC")
		parseFlags(flags, os.Args[2:])
		requireFlag(flags, "vpc-a", *vpcA)
		requireFlag(flags, "vpc-b", *vpcB)
		run(cmd.RunDeletePeering(*vpcA, *vpcB))

	case "apply-rules":
		flags := newFlagSet("apply-rules")
		policy := flags.String("policy", "", "Path to the JSON policy file")
		parseFlags(flags, os.Args[2:])
		requireFlag(flags, "policy", *policy)
		run(cmd.RunApplyRules(*policy))

	case "show":
		flags := newFlagSet("show")
		parseFlags(flags, os.Args[2:])
		run(cmd.RunShow())

	case "version":
		fmt.Printf("%s %s\n", brand.BinaryName, brand.Description)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// newFlagSet creates a per-operation flag set carrying the shared logging
// flags every operation accepts.
func newFlagSet(name string) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ExitOnError)
	flags.Bool("verbose", false, "Enable debug logging")
	flags.Bool("json-log", false, "Emit logs as JSON")
	return flags
}

func parseFlags(flags *flag.FlagSet, args []string) {
	flags.Parse(args)

	cfg := logging.DefaultConfig()
	if f := flags.Lookup("verbose"); f != nil && f.Value.String() == "true" {
		cfg.Level = logging.LevelDebug
	}
	if f := flags.Lookup("json-log"); f != nil && f.Value.String() == "true" {
		cfg.JSON = true
	}
	logging.SetDefault(logging.New(cfg))
}

func requireFlag(flags *flag.FlagSet, name, value string) {
	if value == "" {
		fmt.Fprintf(os.Stderr, "Missing required flag: -%s\n\n", name)
		flags.Usage()
		os.Exit(1)
	}
}

// run prints the error, if any, and exits with the matching status.
func run(err error) {
	if err != nil {
		cmd.RenderFault(err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage: %s <command> [flags]

Commands:
  create-vpc      -name <vpc> -cidr <block>
  delete-vpc      -name <vpc>
  create-subnet   -vpc <vpc> -name <subnet> -cidr <block> [-public -internet-iface <iface>]
  delete-subnet   -vpc <vpc> -name <subnet> [-cidr <block>] [-internet-iface <iface>]
  peer-vpc        -vpc-a <vpc> -vpc-b <vpc>
  delete-peering  -vpc-a <vpc> -vpc-b <vpc>
  apply-rules     -policy <file>
  show
  version

Flags accepted by every command:
  -verbose        Enable debug logging
  -json-log       Emit logs as JSON

All commands must run as root. Concurrent invocations are not synchronized;
run one at a time.
`, brand.Name, brand.Description, brand.BinaryName)
}
