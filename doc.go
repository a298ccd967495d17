// An unattended installer for a custom Arch Linux live image.
//
// The live image ships this installer as a single self-contained binary. On
// start it takes a snapshot of the machine's block devices, picks an install
// target by a fixed priority policy (NVMe before SATA/SSD before rotational
// disks, largest first), derives a partition plan, and asks the operator for
// one explicit confirmation. Everything after that confirmation is
// destructive and runs as a strict stage sequence: partition, format, mount,
// base install, configuration, bootloader, cleanup.
//
// All declarative content (package set, accounts, desktop settings) lives in
// resources/config.yml and is applied verbatim by the configuration stage.
package installer
